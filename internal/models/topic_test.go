package models

import "testing"

func TestTopicFromFile(t *testing.T) {
	topic, ok := TopicFromFile(RepoFile{Name: "1_SequentialProgramming(visualized).kt", Type: "file"})
	if !ok {
		t.Fatal("expected topic")
	}
	if topic.ID != 1 {
		t.Errorf("id = %d, want 1", topic.ID)
	}
	if topic.Title != "Sequential Programming" {
		t.Errorf("title = %q", topic.Title)
	}
	if !topic.Visualized {
		t.Error("expected visualized")
	}
	if !topic.HasUpdated {
		t.Error("new topics start as updated")
	}
}

func TestTopicFromFile_Skips(t *testing.T) {
	cases := []RepoFile{
		{Name: "README.md", Type: "file"},
		{Name: "3_Channels", Type: "dir"},
		{Name: "_Broken.kt", Type: "file"},
	}
	for _, f := range cases {
		if _, ok := TopicFromFile(f); ok {
			t.Errorf("%q should be skipped", f.Name)
		}
	}
}

func TestTopicsFromFiles_SortedByID(t *testing.T) {
	files := []RepoFile{
		{Name: "10_Flows.kt", Type: "file"},
		{Name: "2_CoroutineBuilders.kt", Type: "file"},
		{Name: "notes.txt", Type: "file"},
		{Name: "1_Basics.kt", Type: "file"},
		{Name: "2_Duplicate.kt", Type: "file"},
	}
	topics := TopicsFromFiles(files)
	if len(topics) != 3 {
		t.Fatalf("len = %d, want 3", len(topics))
	}
	want := []int{1, 2, 10}
	for i, id := range want {
		if topics[i].ID != id {
			t.Errorf("topics[%d].ID = %d, want %d", i, topics[i].ID, id)
		}
	}
	if topics[1].Name != "2_CoroutineBuilders.kt" {
		t.Errorf("duplicate id should keep first entry, got %q", topics[1].Name)
	}
}

func TestTopicTitle(t *testing.T) {
	cases := map[string]string{
		"4_HTTPClientBasics.kt":        "HTTP Client Basics",
		"5_Structured_Concurrency.kt":  "Structured Concurrency",
		"6_Jobs(visualized).kt":        "Jobs",
		"7_SuspendFunctions":           "Suspend Functions",
		"8_Dispatchers(Visualized).kt": "Dispatchers",
		"9_Kotlin2Features.kt":         "Kotlin2 Features",
	}
	for in, want := range cases {
		if got := TopicTitle(in); got != want {
			t.Errorf("TopicTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplaceTopic_ByID(t *testing.T) {
	topics := []Topic{{ID: 3, HasUpdated: true}, {ID: 7, HasUpdated: true}}
	updated := topics[1]
	updated.HasUpdated = false

	out, ok := ReplaceTopic(topics, updated)
	if !ok {
		t.Fatal("expected replacement")
	}
	if out[1].HasUpdated {
		t.Error("topic 7 should be cleared")
	}
	if !topics[1].HasUpdated {
		t.Error("input slice must not be mutated")
	}
	if _, ok := ReplaceTopic(topics, Topic{ID: 1}); ok {
		t.Error("unknown id should report false")
	}
}
