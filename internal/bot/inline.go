package bot

import (
	"context"
	"fmt"
	"strings"

	"kinokod-bot/internal/discovery"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/tg"
)

// onInlineQuery answers "@bot title" with matching videos.
func (b *Bot) onInlineQuery(ctx context.Context, q *tg.InlineQuery) error {
	results := []tg.InlineQueryResult{}
	if query := strings.TrimSpace(q.Query); query != "" {
		res := b.engine.SearchByName(ctx, query, discovery.DefaultSearchLimit)
		for _, hits := range [][]discovery.Hit{res.Standalone, res.Seasoned, res.Flat} {
			for _, h := range hits {
				rec := h.Record
				results = append(results, tg.InlineQueryResultCachedVideo{
					Type:        "video",
					ID:          fmt.Sprintf("%s-%d", rec.Shape, rec.Code),
					VideoFileID: rec.MediaRef,
					Title:       rec.Title,
					Description: genre.DisplayText(rec.Genres, b.lang),
					Caption:     caption(rec),
					ParseMode:   "HTML",
				})
			}
		}
	}
	return b.api.AnswerInlineQuery(ctx, tg.AnswerInlineQueryRequest{
		InlineQueryID: q.ID,
		Results:       results,
		CacheTime:     5,
		IsPersonal:    true,
	})
}
