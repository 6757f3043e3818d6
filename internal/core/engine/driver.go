package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/namelens/draftprune/internal/core"
	apperrors "github.com/namelens/draftprune/internal/errors"
)

// DefaultBatchSize is the page size used when none is configured.
const DefaultBatchSize = 10

// ComparisonService is the remote collection the driver pages through.
type ComparisonService interface {
	ListComparisons(ctx context.Context, req core.ListRequest) (*core.Page, error)
	DeleteComparison(ctx context.Context, identifier string) error
}

// Journal records delete attempts.
type Journal interface {
	RecordDeletion(ctx context.Context, record core.DeletionRecord) error
}

// Logger is the subset of the structured logger the engine uses.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) bool

// PageRenderer writes the items of a page for the operator.
type PageRenderer func(w io.Writer, page *core.Page) error

// Driver runs the list, delete and single-delete workflows. It is
// single-threaded: one call in flight at a time, each gated by the service's
// limiter.
type Driver struct {
	Service     ComparisonService
	Confirm     ConfirmFunc
	Render      PageRenderer
	Journal     Journal
	Logger      Logger
	Out         io.Writer
	BatchSize   int
	AutoConfirm bool
	RunID       string
	Clock       func() time.Time
}

// Run dispatches to the workflow for mode.
func (d *Driver) Run(ctx context.Context, mode core.Mode, identifier string) core.Summary {
	switch mode {
	case core.ModeList:
		return d.List(ctx)
	case core.ModeSingleDelete:
		return d.DeleteOne(ctx, identifier)
	default:
		return d.DeleteAll(ctx)
	}
}

// List pages through the collection by offset without mutating it. It stops
// on an empty page, once the reported total has been seen, or when the
// operator declines to continue.
func (d *Driver) List(ctx context.Context) core.Summary {
	ctx = d.context(ctx)
	summary := d.newSummary(core.ModeList)
	req := core.ListRequest{Limit: d.batchSize(), Paged: true}
	fetched := 0

	for batch := 1; ; batch++ {
		if ctx.Err() != nil {
			summary.Stop = core.StopCanceled
			return summary
		}

		d.printf("\nFetching batch %d (offset %d)...\n", batch, req.Offset)
		page, ok := d.fetch(ctx, req)
		if !ok {
			summary.Stop = core.StopFetchFailed
			return summary
		}
		if page.TotalCount <= 0 {
			summary.Stop = core.StopExhausted
			return summary
		}
		if page.Empty() {
			d.println("No more comparisons.")
			summary.Stop = core.StopEmptyPage
			return summary
		}

		// The total can shrink between pages when another run deletes
		// concurrently; never report past it.
		remaining := page.TotalCount - fetched
		if remaining <= 0 {
			summary.Stop = core.StopExhausted
			return summary
		}
		if len(page.Items) > remaining {
			page.Items = page.Items[:remaining]
		}

		summary.Pages++
		d.printf("Count: %d\n", page.TotalCount)
		d.render(page)
		for _, item := range page.Items {
			if item.Identifier == "" {
				d.skip(item, &summary)
				continue
			}
			summary.Listed++
		}

		fetched += len(page.Items)
		if fetched >= page.TotalCount {
			summary.Stop = core.StopExhausted
			return summary
		}

		if !d.AutoConfirm && !d.confirm("\nFetch the next batch? (Y/N): ") {
			d.println("Listing stopped.")
			summary.Stop = core.StopDeclined
			return summary
		}
		req = req.Next()
	}
}

// DeleteAll repeatedly fetches the head of the collection and deletes each
// page. The offset never advances because deletions shift the remaining items
// to the front.
func (d *Driver) DeleteAll(ctx context.Context) core.Summary {
	ctx = d.context(ctx)
	summary := d.newSummary(core.ModeDelete)
	req := core.ListRequest{Limit: d.batchSize()}
	stalled := ""

	for batch := 1; ; batch++ {
		if ctx.Err() != nil {
			summary.Stop = core.StopCanceled
			return summary
		}

		d.printf("\nFetching batch %d...\n", batch)
		page, ok := d.fetch(ctx, req)
		if !ok {
			summary.Stop = core.StopFetchFailed
			return summary
		}
		if page.TotalCount <= 0 {
			summary.Stop = core.StopExhausted
			return summary
		}
		d.printf("Count: %d\n", page.TotalCount)
		if page.Empty() {
			d.println("No more comparisons to delete.")
			summary.Stop = core.StopEmptyPage
			return summary
		}

		fingerprint := pageFingerprint(page)
		if stalled != "" && fingerprint == stalled {
			d.logger().Warn("Same batch returned after no successful deletions, stopping",
				zap.Int("batch", batch),
				zap.Int("items", len(page.Items)),
			)
			d.println("No progress on the previous batch. Exiting.")
			summary.Stop = core.StopNoProgress
			return summary
		}

		summary.Pages++
		d.printf("Found %d comparisons in this batch.\n", len(page.Items))
		d.println("Comparisons:")
		d.render(page)

		if !d.AutoConfirm {
			if !d.confirm("\nAre you sure you want to delete this batch of comparisons? (Y/N): ") {
				d.println("Deletion cancelled. Exiting.")
				summary.Stop = core.StopDeclined
				return summary
			}
		} else {
			d.println("Auto-confirm enabled: deleting this batch without prompt.")
		}

		deleted := 0
		for _, item := range page.Items {
			if ctx.Err() != nil {
				d.println("Run cancelled. Exiting.")
				summary.Stop = core.StopCanceled
				return summary
			}
			if item.Identifier == "" {
				d.skip(item, &summary)
				continue
			}
			if d.delete(ctx, item, &summary) {
				deleted++
			}
		}

		stalled = ""
		if deleted == 0 {
			stalled = fingerprint
		}
	}
}

// DeleteOne deletes a single comparison without fetching any page.
func (d *Driver) DeleteOne(ctx context.Context, identifier string) core.Summary {
	ctx = d.context(ctx)
	summary := d.newSummary(core.ModeSingleDelete)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		d.println("No identifier given.")
		summary.Skipped++
		summary.Stop = core.StopCompleted
		return summary
	}

	if !d.AutoConfirm {
		if !d.confirm(fmt.Sprintf("\nAre you sure you want to delete comparison %s? (Y/N): ", identifier)) {
			d.println("Deletion cancelled. Exiting.")
			summary.Stop = core.StopDeclined
			return summary
		}
	}

	d.delete(ctx, core.Comparison{Identifier: identifier}, &summary)
	summary.Stop = core.StopCompleted
	return summary
}

func (d *Driver) fetch(ctx context.Context, req core.ListRequest) (*core.Page, bool) {
	page, err := d.Service.ListComparisons(ctx, req)
	if err != nil {
		d.logger().Warn("Fetch failed, treating as end of collection",
			zap.Int("limit", req.Limit),
			zap.Int("offset", req.Offset),
			zap.Error(err),
		)
		d.printf("Failed to list comparisons: %s\n", apperrors.StatusDetail(err))
		return &core.Page{}, false
	}
	if page == nil {
		page = &core.Page{}
	}
	d.logger().Debug("Fetched batch",
		zap.Int("limit", req.Limit),
		zap.Int("offset", req.Offset),
		zap.Int("items", len(page.Items)),
		zap.Int("count", page.TotalCount),
	)
	return page, true
}

func (d *Driver) delete(ctx context.Context, item core.Comparison, summary *core.Summary) bool {
	err := d.Service.DeleteComparison(ctx, item.Identifier)

	record := core.DeletionRecord{
		RunID:        d.RunID,
		Identifier:   item.Identifier,
		CreationTime: item.CreationTime,
		Status:       core.DeletionDeleted,
		RecordedAt:   d.now(),
	}

	ok := err == nil
	if ok {
		summary.Deleted++
		d.printf("Deleted comparison %s\n", item.Identifier)
	} else {
		summary.Failed++
		detail := apperrors.StatusDetail(err)
		record.Status = core.DeletionFailed
		record.StatusCode = apperrors.StatusCode(err)
		record.Message = detail
		d.printf("Failed to delete %s: %s\n", item.Identifier, detail)
	}

	if d.Journal != nil {
		if jerr := d.Journal.RecordDeletion(ctx, record); jerr != nil {
			d.logger().Warn("Failed to journal deletion",
				zap.String("identifier", item.Identifier),
				zap.Error(jerr),
			)
		}
	}
	return ok
}

func (d *Driver) skip(item core.Comparison, summary *core.Summary) {
	summary.Skipped++
	d.printf("No identifier found in: %v\n", item.Raw)
}

func (d *Driver) render(page *core.Page) {
	if d.Render == nil || d.out() == io.Discard {
		return
	}
	if err := d.Render(d.out(), page); err != nil {
		d.logger().Warn("Failed to render batch", zap.Error(err))
	}
}

func (d *Driver) confirm(prompt string) bool {
	if d.Confirm == nil {
		return false
	}
	return d.Confirm(prompt)
}

func (d *Driver) newSummary(mode core.Mode) core.Summary {
	return core.Summary{RunID: d.RunID, Mode: mode}
}

func (d *Driver) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.RunID != "" && apperrors.RunID(ctx) == "" {
		ctx = apperrors.WithRunID(ctx, d.RunID)
	}
	return ctx
}

func (d *Driver) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}

func (d *Driver) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.out(), format, args...)
}

func (d *Driver) println(line string) {
	_, _ = fmt.Fprintln(d.out(), line)
}

func (d *Driver) out() io.Writer {
	if d.Out != nil {
		return d.Out
	}
	return io.Discard
}

func (d *Driver) logger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

func (d *Driver) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now().UTC()
}

// pageFingerprint identifies a page by its identifiers in order.
func pageFingerprint(page *core.Page) string {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.Identifier)
	}
	return fmt.Sprintf("%d|%s", len(ids), strings.Join(ids, ","))
}
