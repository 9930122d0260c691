package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/nhle/mailtriage/internal/metrics"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source"
)

// FetchBatch searches the session's mailbox and returns parsed messages in
// search-result order. The count cap keeps the first ids the server returned,
// which is not necessarily the newest messages.
//
// Validation and search errors are returned as-is. A message that cannot be
// fetched or interpreted is logged and left out; a failed \Seen update is
// logged and the message is still returned.
func FetchBatch(
	ctx context.Context,
	mb Mailbox,
	opts source.FetchOptions,
	logger *zap.Logger,
) ([]model.NormalizedEmail, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	criteria, err := BuildSearchCriteria(opts.FromDate, opts.ToDate)
	if err != nil {
		return nil, err
	}

	ids, err := mb.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}
	logger.Debug("search complete",
		zap.Stringer("criteria", criteria),
		zap.Int("matches", len(ids)),
	)

	if limit := opts.Limit(); len(ids) > limit {
		ids = ids[:limit]
	}

	emails := make([]model.NormalizedEmail, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return emails, err
		}

		raw, err := mb.FetchRaw(ctx, id)
		if err != nil {
			metrics.MessagesSkipped.WithLabelValues(skipReason(err)).Inc()
			logger.Warn("skipping message", zap.Uint32("seq", id), zap.Error(err))
			continue
		}

		parsed := Parse(raw.Body)
		for _, pe := range parsed.Skipped {
			logger.Debug("body part skipped",
				zap.String("uid", raw.UID),
				zap.Ints("path", pe.Path),
				zap.Error(pe.Err),
			)
		}
		parsed.Email.UID = raw.UID

		if opts.MarkAsRead {
			if err := mb.MarkSeen(ctx, id); err != nil {
				logger.Warn("marking message seen failed",
					zap.String("uid", raw.UID),
					zap.Error(err),
				)
			}
		}

		emails = append(emails, parsed.Email)
	}

	metrics.MessagesFetched.Add(float64(len(emails)))
	return emails, nil
}

func skipReason(err error) string {
	switch err.(type) {
	case *source.ParseError:
		return "parse"
	default:
		return "fetch"
	}
}
