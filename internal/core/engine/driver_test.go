package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namelens/draftprune/internal/core"
	apperrors "github.com/namelens/draftprune/internal/errors"
)

// fakeService is an in-memory comparisons collection.
type fakeService struct {
	items     []core.Comparison
	listCalls []core.ListRequest
	deletes   []string
	failList  bool
	failIDs   map[string]bool
	countFn   func(total int) int
}

func newFakeService(n int) *fakeService {
	svc := &fakeService{failIDs: map[string]bool{}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("cmp-%02d", i)
		svc.items = append(svc.items, core.Comparison{
			Identifier:   id,
			CreationTime: "2025-01-01T00:00:00Z",
			Raw:          map[string]any{"identifier": id},
		})
	}
	return svc
}

func (s *fakeService) ListComparisons(ctx context.Context, req core.ListRequest) (*core.Page, error) {
	s.listCalls = append(s.listCalls, req)
	if s.failList {
		return &core.Page{}, apperrors.FromStatus(ctx, 500, "boom", "Failed to list comparisons: 500 boom")
	}

	start := 0
	if req.Paged {
		start = req.Offset
	}
	if start > len(s.items) {
		start = len(s.items)
	}
	end := start + req.Limit
	if end > len(s.items) {
		end = len(s.items)
	}

	total := len(s.items)
	if s.countFn != nil {
		total = s.countFn(total)
	}
	page := &core.Page{TotalCount: total}
	page.Items = append(page.Items, s.items[start:end]...)
	return page, nil
}

func (s *fakeService) DeleteComparison(ctx context.Context, identifier string) error {
	s.deletes = append(s.deletes, identifier)
	if s.failIDs[identifier] {
		return apperrors.FromStatus(ctx, 500, "nope", "Failed to delete "+identifier)
	}
	for i, item := range s.items {
		if item.Identifier == identifier {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return apperrors.FromStatus(ctx, 404, `{"detail":"Not found."}`, "Failed to delete "+identifier)
}

type memoryJournal struct {
	records []core.DeletionRecord
}

func (j *memoryJournal) RecordDeletion(ctx context.Context, record core.DeletionRecord) error {
	j.records = append(j.records, record)
	return nil
}

// scriptedConfirm answers prompts from a fixed script, then declines.
func scriptedConfirm(answers ...bool) (ConfirmFunc, *int) {
	asked := 0
	return func(prompt string) bool {
		asked++
		if asked > len(answers) {
			return false
		}
		return answers[asked-1]
	}, &asked
}

func textRender(w io.Writer, page *core.Page) error {
	for _, item := range page.Items {
		if _, err := fmt.Fprintf(w, "Identifier: %s | Created: %s\n", item.Identifier, item.CreationTime); err != nil {
			return err
		}
	}
	return nil
}

func newTestDriver(svc ComparisonService) (*Driver, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Driver{
		Service:   svc,
		Render:    textRender,
		Out:       out,
		BatchSize: 3,
		RunID:     "run-1",
	}, out
}

func TestListVisitsOffsetsUntilTotal(t *testing.T) {
	svc := newFakeService(8)
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.List(context.Background())

	require.Equal(t, []core.ListRequest{
		{Limit: 3, Offset: 0, Paged: true},
		{Limit: 3, Offset: 3, Paged: true},
		{Limit: 3, Offset: 6, Paged: true},
	}, svc.listCalls)
	require.Equal(t, 8, summary.Listed)
	require.Equal(t, 3, summary.Pages)
	require.Equal(t, core.StopExhausted, summary.Stop)
	require.Empty(t, svc.deletes)
	require.Contains(t, out.String(), "Identifier: cmp-07 | Created: 2025-01-01T00:00:00Z")
}

func TestListStopsWhenOperatorDeclines(t *testing.T) {
	svc := newFakeService(8)
	driver, _ := newTestDriver(svc)
	confirm, asked := scriptedConfirm(true, false)
	driver.Confirm = confirm

	summary := driver.List(context.Background())

	require.Equal(t, 2, *asked)
	require.Len(t, svc.listCalls, 2)
	require.Equal(t, 6, summary.Listed)
	require.Equal(t, core.StopDeclined, summary.Stop)
}

func TestListBoundedByReportedTotal(t *testing.T) {
	svc := newFakeService(9)
	svc.countFn = func(int) int { return 4 }
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.List(context.Background())

	require.Equal(t, 4, summary.Listed)
	require.Len(t, svc.listCalls, 2)
	require.Equal(t, core.StopExhausted, summary.Stop)
}

func TestListStopsWhenReportedTotalShrinks(t *testing.T) {
	svc := newFakeService(25)
	calls := 0
	svc.countFn = func(int) int {
		calls++
		if calls == 1 {
			return 25
		}
		return 5
	}
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true
	driver.BatchSize = 10

	var summary core.Summary
	require.NotPanics(t, func() { summary = driver.List(context.Background()) })

	require.Equal(t, 10, summary.Listed)
	require.Equal(t, 1, summary.Pages)
	require.Len(t, svc.listCalls, 2)
	require.Equal(t, core.StopExhausted, summary.Stop)
}

func TestListFollowsGrowingTotal(t *testing.T) {
	svc := newFakeService(8)
	calls := 0
	svc.countFn = func(int) int {
		calls++
		if calls == 1 {
			return 4
		}
		return 7
	}
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.List(context.Background())

	// The last page holds two items but only one fits under the new total.
	require.Equal(t, 7, summary.Listed)
	require.Equal(t, 3, summary.Pages)
	require.Len(t, svc.listCalls, 3)
	require.Equal(t, core.StopExhausted, summary.Stop)
}

func TestListSkipsItemsWithoutIdentifier(t *testing.T) {
	svc := newFakeService(4)
	svc.items[1] = core.Comparison{CreationTime: "x", Raw: map[string]any{"creation_time": "x"}}
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.List(context.Background())

	require.Equal(t, 3, summary.Listed)
	require.Equal(t, 1, summary.Skipped)
	require.Len(t, svc.listCalls, 2)
	require.Contains(t, out.String(), "No identifier found in: map[creation_time:x]")
}

func TestZeroTotalStopsOnFirstFetch(t *testing.T) {
	for _, mode := range []core.Mode{core.ModeList, core.ModeDelete} {
		svc := newFakeService(3)
		svc.countFn = func(int) int { return 0 }
		driver, _ := newTestDriver(svc)
		driver.AutoConfirm = true

		summary := driver.Run(context.Background(), mode, "")

		require.Len(t, svc.listCalls, 1, mode)
		require.Empty(t, svc.deletes, mode)
		require.Equal(t, 0, summary.Total(), mode)
		require.Equal(t, core.StopExhausted, summary.Stop, mode)
	}
}

func TestDeleteAllUsesFixedHead(t *testing.T) {
	svc := newFakeService(7)
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true
	journal := &memoryJournal{}
	driver.Journal = journal

	summary := driver.DeleteAll(context.Background())

	require.Equal(t, 7, summary.Deleted)
	require.Equal(t, 3, summary.Pages)
	require.Equal(t, core.StopExhausted, summary.Stop)
	require.Empty(t, svc.items)
	for _, req := range svc.listCalls {
		require.Equal(t, core.ListRequest{Limit: 3}, req)
	}
	require.Len(t, svc.listCalls, 4)
	require.Len(t, journal.records, 7)
	require.Equal(t, "run-1", journal.records[0].RunID)
	require.Equal(t, core.DeletionDeleted, journal.records[0].Status)
	require.Contains(t, out.String(), "Auto-confirm enabled: deleting this batch without prompt.")
	require.Contains(t, out.String(), "Deleted comparison cmp-06")
}

func TestDeleteAllDeclineOnSecondPageKeepsFirst(t *testing.T) {
	svc := newFakeService(7)
	driver, out := newTestDriver(svc)
	confirm, asked := scriptedConfirm(true, false)
	driver.Confirm = confirm

	summary := driver.DeleteAll(context.Background())

	require.Equal(t, 2, *asked)
	require.Equal(t, []string{"cmp-00", "cmp-01", "cmp-02"}, svc.deletes)
	require.Len(t, svc.items, 4)
	require.Len(t, svc.listCalls, 2)
	require.Equal(t, 3, summary.Deleted)
	require.Equal(t, core.StopDeclined, summary.Stop)
	require.Contains(t, out.String(), "Deletion cancelled. Exiting.")
}

func TestDeleteAllPartialFailureContinues(t *testing.T) {
	svc := newFakeService(3)
	svc.failIDs["cmp-01"] = true
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true
	journal := &memoryJournal{}
	driver.Journal = journal

	summary := driver.DeleteAll(context.Background())

	require.Equal(t, 2, summary.Deleted)
	require.GreaterOrEqual(t, summary.Failed, 1)
	require.Equal(t, []string{"cmp-01"}, identifiersOf(svc.items))
	require.Equal(t, core.StopNoProgress, summary.Stop)
	require.Contains(t, out.String(), "Failed to delete cmp-01: 500 nope")

	var failed int
	for _, record := range journal.records {
		if record.Status == core.DeletionFailed {
			failed++
			require.Equal(t, 500, record.StatusCode)
		}
	}
	require.Equal(t, summary.Failed, failed)
}

func TestDeleteAllMissingIdentifierSkippedThenNextPage(t *testing.T) {
	svc := newFakeService(2)
	svc.items = append([]core.Comparison{{Raw: map[string]any{"creation_time": "x"}}}, svc.items...)
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true
	driver.BatchSize = 1

	summary := driver.DeleteAll(context.Background())

	// The first page is only the broken item; the loop moves on and stops once
	// the same page comes back with nothing deleted.
	require.Equal(t, 0, summary.Deleted)
	require.Equal(t, 1, summary.Skipped)
	require.Equal(t, core.StopNoProgress, summary.Stop)
	require.Empty(t, svc.deletes)

	svc = newFakeService(2)
	svc.items = append([]core.Comparison{{Raw: map[string]any{}}}, svc.items...)
	driver, _ = newTestDriver(svc)
	driver.AutoConfirm = true

	summary = driver.DeleteAll(context.Background())

	// The broken item is skipped on each visit until it is the only item left.
	require.Equal(t, 2, summary.Deleted)
	require.Equal(t, 2, summary.Skipped)
	require.Equal(t, core.StopNoProgress, summary.Stop)
	require.Equal(t, []string{"cmp-00", "cmp-01"}, svc.deletes)
}

// cancelingService cancels the run after its first successful delete.
type cancelingService struct {
	*fakeService
	cancel context.CancelFunc
}

func (c *cancelingService) DeleteComparison(ctx context.Context, identifier string) error {
	err := c.fakeService.DeleteComparison(ctx, identifier)
	c.cancel()
	return err
}

func TestDeleteAllStopsMidPageWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := &cancelingService{fakeService: newFakeService(5), cancel: cancel}
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true
	journal := &memoryJournal{}
	driver.Journal = journal

	summary := driver.DeleteAll(ctx)

	require.Equal(t, []string{"cmp-00"}, svc.deletes)
	require.Equal(t, 1, summary.Deleted)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, core.StopCanceled, summary.Stop)
	require.Len(t, journal.records, 1)
	require.Equal(t, core.DeletionDeleted, journal.records[0].Status)
	require.Len(t, svc.listCalls, 1)
	require.Contains(t, out.String(), "Run cancelled. Exiting.")
}

func TestFetchFailureStopsLoop(t *testing.T) {
	svc := newFakeService(5)
	svc.failList = true
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.DeleteAll(context.Background())

	require.Equal(t, core.StopFetchFailed, summary.Stop)
	require.Len(t, svc.listCalls, 1)
	require.Empty(t, svc.deletes)
	require.Contains(t, out.String(), "Failed to list comparisons: 500 boom")
}

func TestDeleteOneNoConfirmIssuesSingleDelete(t *testing.T) {
	svc := newFakeService(3)
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true

	summary := driver.Run(context.Background(), core.ModeSingleDelete, "cmp-02")

	require.Empty(t, svc.listCalls)
	require.Equal(t, []string{"cmp-02"}, svc.deletes)
	require.Equal(t, 1, summary.Deleted)
	require.Equal(t, core.StopCompleted, summary.Stop)
}

func TestDeleteOneTwiceReportsFailure(t *testing.T) {
	svc := newFakeService(1)
	driver, out := newTestDriver(svc)
	driver.AutoConfirm = true

	first := driver.DeleteOne(context.Background(), "cmp-00")
	second := driver.DeleteOne(context.Background(), "cmp-00")

	require.Equal(t, 1, first.Deleted)
	require.Equal(t, 0, second.Deleted)
	require.Equal(t, 1, second.Failed)
	require.Contains(t, out.String(), "Failed to delete cmp-00: 404")
}

func TestDeleteOneDeclined(t *testing.T) {
	svc := newFakeService(1)
	driver, _ := newTestDriver(svc)
	confirm, asked := scriptedConfirm(false)
	driver.Confirm = confirm

	summary := driver.DeleteOne(context.Background(), "cmp-00")

	require.Equal(t, 1, *asked)
	require.Empty(t, svc.deletes)
	require.Equal(t, core.StopDeclined, summary.Stop)
}

func TestGatedServiceRespectsCeiling(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestWindow(t, 2, clock)
	svc := &gatedService{next: newFakeService(4), limiter: limiter}
	driver, _ := newTestDriver(svc)
	driver.AutoConfirm = true
	driver.BatchSize = 4

	summary := driver.DeleteAll(context.Background())

	// 1 fetch + 4 deletes + 1 final fetch = 6 calls; every third call waits
	// for a full window because the clock only moves while sleeping.
	require.Equal(t, 4, summary.Deleted)
	require.Len(t, svc.next.(*fakeService).listCalls, 2)
	require.Equal(t, []time.Duration{time.Minute, time.Minute}, clock.slept)
}

type gatedService struct {
	next    ComparisonService
	limiter Limiter
}

func (g *gatedService) ListComparisons(ctx context.Context, req core.ListRequest) (*core.Page, error) {
	g.limiter.Acquire()
	return g.next.ListComparisons(ctx, req)
}

func (g *gatedService) DeleteComparison(ctx context.Context, identifier string) error {
	g.limiter.Acquire()
	return g.next.DeleteComparison(ctx, identifier)
}

func identifiersOf(items []core.Comparison) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Identifier)
	}
	return ids
}
