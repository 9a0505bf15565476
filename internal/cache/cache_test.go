package cache

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/starford/cheatsheet/internal/apperr"
	"github.com/starford/cheatsheet/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "cheatsheet-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleTopics() []models.Topic {
	return []models.Topic{
		{ID: 1, Name: "1_SequentialProgramming(visualized).kt", Title: "Sequential Programming", Visualized: true, VersionName: "1.2.0", HasUpdated: true},
		{ID: 2, Name: "2_CoroutineBuilders.kt", Title: "Coroutine Builders", VersionName: "1.2.0", HasUpdated: true},
		{ID: 4, Name: "4_Dispatchers.kt", Title: "Dispatchers", VersionName: "1.2.0", HasUpdated: false},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM topics`).Scan(&count); err != nil {
		t.Fatalf("topics table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM preferences`).Scan(&count); err != nil {
		t.Fatalf("preferences table missing: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestReplaceAndList(t *testing.T) {
	db := testDB(t)
	if err := db.ReplaceTopics("coroutine", sampleTopics()); err != nil {
		t.Fatalf("ReplaceTopics: %v", err)
	}
	got, err := db.ListTopics("coroutine")
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != 1 || !got[0].Visualized || !got[0].HasUpdated || got[0].VersionName != "1.2.0" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[2].HasUpdated {
		t.Error("has_updated should round-trip false")
	}
	if got[0].UpdatedAt.IsZero() {
		t.Error("updated_at should be filled in")
	}
}

func TestReplaceClearsOnlyThatCourse(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceTopics("coroutine", sampleTopics())
	_ = db.ReplaceTopics("kotlin", sampleTopics()[:1])
	if err := db.ReplaceTopics("coroutine", []models.Topic{{ID: 7, Name: "7_Flow.kt", Title: "Flow"}}); err != nil {
		t.Fatalf("ReplaceTopics: %v", err)
	}

	co, _ := db.ListTopics("coroutine")
	if len(co) != 1 || co[0].ID != 7 {
		t.Errorf("coroutine = %+v", co)
	}
	kt, _ := db.ListTopics("kotlin")
	if len(kt) != 1 {
		t.Errorf("kotlin topics should be untouched, got %+v", kt)
	}
}

func TestListTopics_EmptyIsNonNil(t *testing.T) {
	db := testDB(t)
	got, err := db.ListTopics("nothing")
	if err != nil {
		t.Fatalf("ListTopics: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}
}

func TestMarkUpdated(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceTopics("coroutine", sampleTopics())

	unknown, err := db.MarkUpdated("coroutine", []int{4, 9}, true)
	if err != nil {
		t.Fatalf("MarkUpdated: %v", err)
	}
	if !reflect.DeepEqual(unknown, []int{9}) {
		t.Errorf("unknown = %v, want [9]", unknown)
	}
	got, _ := db.GetTopic("coroutine", 4)
	if !got.HasUpdated {
		t.Error("topic 4 should be flagged")
	}

	if _, err := db.MarkUpdated("coroutine", []int{1}, false); err != nil {
		t.Fatalf("MarkUpdated: %v", err)
	}
	got, _ = db.GetTopic("coroutine", 1)
	if got.HasUpdated {
		t.Error("topic 1 should be cleared")
	}
}

func TestGetTopic_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetTopic("coroutine", 42)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestVersion(t *testing.T) {
	db := testDB(t)
	v, err := db.Version("coroutine")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != "" {
		t.Errorf("never synced version = %q, want empty", v)
	}

	_ = db.SetVersion("coroutine", "1.2.3")
	_ = db.SetVersion("coroutine", "1.2.5")
	_ = db.SetVersion("kotlin", "2.0.0")

	if v, _ := db.Version("coroutine"); v != "1.2.5" {
		t.Errorf("coroutine version = %q", v)
	}
	if v, _ := db.Version("kotlin"); v != "2.0.0" {
		t.Errorf("kotlin version = %q", v)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceTopics("coroutine", sampleTopics())

	results, err := db.Search("Dispatchers", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].TopicID != 4 || results[0].Course != "coroutine" {
		t.Errorf("search results = %+v, want 1 hit for topic 4", results)
	}

	results, err = db.Search("   ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("blank query = %+v, %v", results, err)
	}
}
