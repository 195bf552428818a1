package audit

import (
	"context"
	"strings"
)

// Mission derives a mission statement from the homepage text.
func Mission(ctx context.Context, summarizer *Summarizer, homepage string) (string, error) {
	docs, err := summarizer.Summarize(ctx, homepage, MissionInstruction)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(docs, "\n")), nil
}
