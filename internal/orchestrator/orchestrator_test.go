package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/cache"
	"github.com/starford/cheatsheet/internal/models"
	"github.com/starford/cheatsheet/internal/testutil"
	"github.com/starford/cheatsheet/internal/version"
)

var coroutine = models.Course{Name: "coroutine", Dir: "courses/coroutine"}

func seedSource() *testutil.FakeSource {
	src := testutil.NewFakeSource()
	src.Put("coroutine", "1_SequentialProgramming(visualized).kt", "/** * one */")
	src.Put("coroutine", "2_CoroutineBuilders.kt", "/** * two */")
	src.Put("coroutine", "3_Jobs.kt", "/** * three */")
	return src
}

// seedCache stores topics 1..8 without update flags at cachedVersion.
func seedCache(t *testing.T, db *cache.DB, cachedVersion string) {
	t.Helper()
	var topics []models.Topic
	for id := 1; id <= 8; id++ {
		topics = append(topics, models.Topic{ID: id, Name: "topic", VersionName: cachedVersion})
	}
	if err := db.ReplaceTopics(coroutine.Name, topics); err != nil {
		t.Fatal(err)
	}
	if err := db.SetVersion(coroutine.Name, cachedVersion); err != nil {
		t.Fatal(err)
	}
}

// recorder is a Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.events))
	for i, e := range r.events {
		out[i] = e.State
	}
	return out
}

func flagged(topics []models.Topic) []int {
	var ids []int
	for _, t := range topics {
		if t.HasUpdated {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func TestSync_ListStaleReplacesCache(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	rec := &recorder{}
	o := New(coroutine, seedSource(), db, testutil.Logger(), WithNotifier(rec))

	res, err := o.Sync(context.Background(), Input{VersionName: "1.3.0"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Staleness != version.ListStale || !res.HasListUpdate {
		t.Errorf("result = %+v", res)
	}
	if len(res.Topics) != 3 || res.Topics[0].Title != "Sequential Programming" || !res.Topics[0].Visualized {
		t.Fatalf("topics = %+v", res.Topics)
	}

	cached, _ := db.ListTopics(coroutine.Name)
	if len(cached) != 3 {
		t.Fatalf("cache should be fully replaced, got %d topics", len(cached))
	}
	for _, tp := range cached {
		if !tp.HasUpdated || tp.VersionName != "1.3.0" {
			t.Errorf("cached topic = %+v", tp)
		}
	}
	if v, _ := db.Version(coroutine.Name); v != "1.3.0" {
		t.Errorf("version = %q", v)
	}

	want := []State{StateStart, StateLoading, StateListCheck, StateFetchRemote, StateStop}
	if got := rec.states(); !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestSync_NeverSyncedIsListStale(t *testing.T) {
	for _, published := range []string{"0.0.0", "0.0.1", "0.0.5-ids:[1]", "1.0.0"} {
		t.Run(published, func(t *testing.T) {
			db := testutil.TestDB(t)
			src := seedSource()
			o := New(coroutine, src, db, testutil.Logger())

			res, err := o.Sync(context.Background(), Input{VersionName: published})
			if err != nil {
				t.Fatalf("Sync: %v", err)
			}
			if res.Staleness != version.ListStale || !res.HasListUpdate || len(res.Topics) != 3 {
				t.Errorf("result = %+v", res)
			}
			if src.Calls("ListTopics") != 1 {
				t.Errorf("ListTopics calls = %d, want 1", src.Calls("ListTopics"))
			}
			if v, _ := db.Version(coroutine.Name); v != published {
				t.Errorf("version = %q, want %q", v, published)
			}
		})
	}
}

func TestSync_ContentStaleFlagsOnlyNamedIDs(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	src := seedSource()
	rec := &recorder{}
	o := New(coroutine, src, db, testutil.Logger(), WithNotifier(rec))

	res, err := o.Sync(context.Background(), Input{VersionName: "1.2.5-ids:[4,7]"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Staleness != version.ContentStale || res.HasListUpdate || !res.HasContentUpdate {
		t.Errorf("result = %+v", res)
	}
	if !reflect.DeepEqual(res.UpdatedIDs, []int{4, 7}) {
		t.Errorf("updated ids = %v", res.UpdatedIDs)
	}
	if got := flagged(res.Topics); !reflect.DeepEqual(got, []int{4, 7}) {
		t.Errorf("flagged = %v, want [4 7]", got)
	}
	if len(res.Topics) != 8 {
		t.Errorf("topics should come from the cache, got %d", len(res.Topics))
	}
	if src.Calls("ListTopics") != 0 {
		t.Error("content-stale sync must not fetch the remote list")
	}
	if v, _ := db.Version(coroutine.Name); v != "1.2.5-ids:[4,7]" {
		t.Errorf("version = %q", v)
	}

	want := []State{StateStart, StateLoading, StateListCheck, StateContentCheck, StateReadCache, StateStop}
	if got := rec.states(); !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestSync_ExplicitSuffix(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	o := New(coroutine, seedSource(), db, testutil.Logger())

	res, err := o.Sync(context.Background(), Input{VersionName: "1.2.4", VersionSuffix: "-ids:[2]"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := flagged(res.Topics); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("flagged = %v, want [2]", got)
	}
}

func TestSync_UpToDateReadsCache(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	src := seedSource()
	o := New(coroutine, src, db, testutil.Logger())

	for _, in := range []Input{{VersionName: "1.2.3"}, {}} {
		res, err := o.Sync(context.Background(), in)
		if err != nil {
			t.Fatalf("Sync(%+v): %v", in, err)
		}
		if res.Staleness != version.UpToDate || res.HasListUpdate || res.HasContentUpdate {
			t.Errorf("result = %+v", res)
		}
		if len(res.Topics) != 8 || len(flagged(res.Topics)) != 0 {
			t.Errorf("topics = %+v", res.Topics)
		}
	}
	if src.Calls("ListTopics") != 0 {
		t.Error("up-to-date sync must not fetch the remote list")
	}
}

func TestSync_EmptyRemoteListFails(t *testing.T) {
	db := testutil.TestDB(t)
	rec := &recorder{}
	o := New(coroutine, testutil.NewFakeSource(), db, testutil.Logger(), WithNotifier(rec))

	_, err := o.Sync(context.Background(), Input{VersionName: "2.0.0"})
	if !errors.Is(err, apperr.ErrEmptyResult) {
		t.Fatalf("err = %v, want empty result", err)
	}
	var f *apperr.Failure
	if !errors.As(err, &f) || f.Message != "There are no topics to show." {
		t.Errorf("failure = %+v", f)
	}
	states := rec.states()
	if states[len(states)-1] != StateFailed {
		t.Errorf("last state = %v", states[len(states)-1])
	}
	if v, _ := db.Version(coroutine.Name); v != "" {
		t.Errorf("version should not be recorded on failure, got %q", v)
	}
}

func TestSync_NetworkFailure(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.0.0")
	src := seedSource()
	src.FailList(apperr.Network(500, "Internal Server Error", nil))
	o := New(coroutine, src, db, testutil.Logger())

	_, err := o.Sync(context.Background(), Input{VersionName: "2.0.0"})
	if !errors.Is(err, apperr.ErrNetwork) {
		t.Fatalf("err = %v, want network failure", err)
	}
	var f *apperr.Failure
	if errors.As(err, &f) && f.Code != 500 {
		t.Errorf("code = %d, want 500", f.Code)
	}
	if cached, _ := db.ListTopics(coroutine.Name); len(cached) != 8 {
		t.Error("cache must be left untouched on failure")
	}
}

func TestSync_EmptyCacheFails(t *testing.T) {
	db := testutil.TestDB(t)
	_ = db.SetVersion(coroutine.Name, "1.0.0")
	o := New(coroutine, seedSource(), db, testutil.Logger())

	if _, err := o.Sync(context.Background(), Input{VersionName: "1.0.0"}); !errors.Is(err, apperr.ErrEmptyResult) {
		t.Errorf("err = %v, want empty result", err)
	}
}

func TestSync_MalformedRemoteVersion(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	o := New(coroutine, seedSource(), db, testutil.Logger())

	for _, in := range []Input{{VersionName: "banana"}, {VersionName: "1.2.4", VersionSuffix: "[4,7"}} {
		if _, err := o.Sync(context.Background(), in); !errors.Is(err, apperr.ErrInvalidVersion) {
			t.Errorf("Sync(%+v) err = %v, want invalid version", in, err)
		}
	}
}

func TestSync_MalformedCachedVersionRefreshesList(t *testing.T) {
	for _, published := range []string{"0.0.0", "0.0.2", "1.2.3"} {
		t.Run(published, func(t *testing.T) {
			db := testutil.TestDB(t)
			seedCache(t, db, "1.2.3")
			_ = db.SetVersion(coroutine.Name, "garbage")
			src := seedSource()
			o := New(coroutine, src, db, testutil.Logger())

			res, err := o.Sync(context.Background(), Input{VersionName: published})
			if err != nil {
				t.Fatalf("Sync: %v", err)
			}
			if !res.HasListUpdate || len(res.Topics) != 3 {
				t.Errorf("result = %+v, want list update with 3 topics", res)
			}
			if src.Calls("ListTopics") != 1 {
				t.Errorf("ListTopics calls = %d, want 1", src.Calls("ListTopics"))
			}
		})
	}
}

func TestSync_OverlappingSyncsRunOneAtATime(t *testing.T) {
	db := testutil.TestDB(t)
	src := seedSource()
	src.OnList(func() { time.Sleep(50 * time.Millisecond) })
	o := New(coroutine, src, db, testutil.Logger())

	const n = 4
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Sync(context.Background(), Input{VersionName: "2.0.0"})
		}(i)
	}
	wg.Wait()

	listUpdates := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Sync %d: %v", i, errs[i])
		}
		if len(results[i].Topics) != 3 {
			t.Errorf("Sync %d topics = %d", i, len(results[i].Topics))
		}
		if results[i].HasListUpdate {
			listUpdates++
		}
	}
	if listUpdates != 1 {
		t.Errorf("list updates = %d, want 1", listUpdates)
	}
	if c := src.Calls("ListTopics"); c != 1 {
		t.Errorf("ListTopics calls = %d, want 1", c)
	}
}

func TestOrchestrator_MarkSeen(t *testing.T) {
	db := testutil.TestDB(t)
	rec := &recorder{}
	o := New(coroutine, seedSource(), db, testutil.Logger(), WithNotifier(rec))
	ctx := context.Background()

	if _, err := o.Sync(ctx, Input{VersionName: "1.0.0"}); err != nil {
		t.Fatal(err)
	}
	synced := len(rec.states())

	tp, err := o.MarkSeen(ctx, 2)
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if tp.ID != 2 || tp.HasUpdated {
		t.Errorf("topic = %+v", tp)
	}
	rec.mu.Lock()
	events := append([]Event(nil), rec.events...)
	rec.mu.Unlock()
	if len(events) != synced+1 {
		t.Fatalf("events = %d, want %d", len(events), synced+1)
	}
	seen := events[len(events)-1]
	if seen.State != StateStop || seen.SeenID != 2 || !seen.Changed() {
		t.Errorf("event = %+v", seen)
	}
	if got := flagged(seen.Topics); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("flagged = %v, want [1 3]", got)
	}
	if cached, _ := db.GetTopic(coroutine.Name, 2); cached.HasUpdated {
		t.Error("cache flag not cleared")
	}

	// Already seen: no further event.
	if _, err := o.MarkSeen(ctx, 2); err != nil {
		t.Fatalf("second MarkSeen: %v", err)
	}
	if n := len(rec.states()); n != synced+1 {
		t.Errorf("events after second MarkSeen = %d, want %d", n, synced+1)
	}

	if _, err := o.MarkSeen(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MarkSeen unknown = %v, want ErrNotFound", err)
	}
}

func TestSession_MarkSeenByID(t *testing.T) {
	db := testutil.TestDB(t)
	seedCache(t, db, "1.2.3")
	o := New(coroutine, seedSource(), db, testutil.Logger())
	ctx := context.Background()

	s := o.Open(ctx, Input{VersionName: "1.2.5-ids:[4,7]"})
	defer s.Close()

	if err := s.MarkSeen(ctx, 7); !errors.Is(err, ErrNotReady) {
		t.Errorf("MarkSeen before start = %v, want ErrNotReady", err)
	}

	s.Start()
	var stop Event
	for ev := range s.Events() {
		if ev.State == StateStop {
			stop = ev
			break
		}
	}
	before := stop.Topics

	if err := s.MarkSeen(ctx, 7); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	var seen Event
	select {
	case seen = <-s.Events():
	case <-time.After(time.Second):
		t.Fatal("no event after MarkSeen")
	}
	if seen.SeenID != 7 || !seen.Changed() {
		t.Errorf("event = %+v", seen)
	}
	if got := flagged(seen.Topics); !reflect.DeepEqual(got, []int{4}) {
		t.Errorf("flagged after seen = %v, want [4]", got)
	}
	if got := flagged(before); !reflect.DeepEqual(got, []int{4, 7}) {
		t.Errorf("earlier list was mutated: %v", got)
	}
	tp, _ := db.GetTopic(coroutine.Name, 7)
	if tp.HasUpdated {
		t.Error("cache flag not cleared")
	}

	if err := s.MarkSeen(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("MarkSeen unknown = %v, want ErrNotFound", err)
	}
}

func TestSession_StartOnlyOnce(t *testing.T) {
	db := testutil.TestDB(t)
	src := seedSource()
	o := New(coroutine, src, db, testutil.Logger())

	s := o.Open(context.Background(), Input{VersionName: "1.0.0"})
	s.Start()
	s.Start()
	for ev := range s.Events() {
		if ev.State == StateStop {
			break
		}
	}
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Close()

	if n := src.Calls("ListTopics"); n != 1 {
		t.Errorf("ListTopics calls = %d, want 1", n)
	}
}

func TestSession_CancelAbandonsWork(t *testing.T) {
	db := testutil.TestDB(t)
	src := seedSource()
	ctx, cancel := context.WithCancel(context.Background())
	src.OnList(cancel)
	o := New(coroutine, src, db, testutil.Logger())

	_, err := o.Sync(ctx, Input{VersionName: "1.0.0"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cached, _ := db.ListTopics(coroutine.Name); len(cached) != 0 {
		t.Error("abandoned sync must not write the cache")
	}
}

func TestSession_CloseClosesEvents(t *testing.T) {
	db := testutil.TestDB(t)
	o := New(coroutine, seedSource(), db, testutil.Logger())
	s := o.Open(context.Background(), Input{})
	s.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session loop did not exit")
	}
	for range s.Events() {
	}
	if err := s.MarkSeen(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("MarkSeen after close = %v, want ErrClosed", err)
	}
}
