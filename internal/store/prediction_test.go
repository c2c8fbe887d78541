package store

import (
	"errors"
	"testing"
	"time"
)

func TestPredictionRepository_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Predictions()

	t.Run("frame prediction", func(t *testing.T) {
		p := &Prediction{
			Kind:         KindFrame,
			Label:        "Hello",
			Confidence:   0.87,
			HandDetected: true,
			Source:       "predict-frame",
		}
		if err := repo.Create(p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if p.ID == "" {
			t.Fatal("Create() should assign an ID")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Create() should set CreatedAt")
		}

		got, err := repo.GetByID(p.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Kind != KindFrame || got.Label != "Hello" || got.Confidence != 0.87 || !got.HandDetected {
			t.Errorf("GetByID() = %+v", got)
		}
		if got.Votes != nil {
			t.Errorf("Votes = %s, want nil", got.Votes)
		}
		if got.Source != "predict-frame" {
			t.Errorf("Source = %q", got.Source)
		}
	})

	t.Run("video prediction keeps votes", func(t *testing.T) {
		p := &Prediction{
			ID:              "video-1",
			Kind:            KindVideo,
			Label:           "A",
			Confidence:      0.7,
			FramesProcessed: 15,
			Votes:           []byte(`{"A":2,"B":1}`),
			Source:          "clip.mp4",
		}
		if err := repo.Create(p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := repo.GetByID("video-1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.FramesProcessed != 15 {
			t.Errorf("FramesProcessed = %d, want 15", got.FramesProcessed)
		}
		if string(got.Votes) != `{"A":2,"B":1}` {
			t.Errorf("Votes = %s", got.Votes)
		}
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		err := repo.Create(&Prediction{ID: "video-1", Kind: KindVideo, Label: "A"})
		if err == nil {
			t.Error("expected error on duplicate id")
		}
	})

	t.Run("invalid kind fails", func(t *testing.T) {
		if err := repo.Create(&Prediction{Kind: "audio", Label: "A"}); err == nil {
			t.Error("expected error for invalid kind")
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := repo.GetByID("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPredictionRepository_List(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Predictions()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, label := range []string{"A", "B", "C", "D"} {
		p := &Prediction{
			Kind:       KindFrame,
			Label:      label,
			Confidence: 0.5,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(p); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		limit  int
		labels []string
	}{
		{name: "newest first", limit: 10, labels: []string{"D", "C", "B", "A"}},
		{name: "limit", limit: 2, labels: []string{"D", "C"}},
		{name: "non-positive limit uses default", limit: 0, labels: []string{"D", "C", "B", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.List(tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(list) != len(tt.labels) {
				t.Fatalf("List() returned %d, want %d", len(list), len(tt.labels))
			}
			for i, want := range tt.labels {
				if list[i].Label != want {
					t.Errorf("list[%d].Label = %q, want %q", i, list[i].Label, want)
				}
			}
		})
	}
}

func TestPredictionRepository_CountByLabel(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Predictions()

	for _, label := range []string{"B", "A", "B", "C", "B", "A"} {
		if err := repo.Create(&Prediction{Kind: KindFrame, Label: label}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	counts, err := repo.CountByLabel()
	if err != nil {
		t.Fatalf("CountByLabel() error = %v", err)
	}

	want := []LabelCount{{"B", 3}, {"A", 2}, {"C", 1}}
	if len(counts) != len(want) {
		t.Fatalf("CountByLabel() = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %v, want %v", i, counts[i], want[i])
		}
	}
}

func TestPredictionRepository_Delete(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Predictions()

	p := &Prediction{Kind: KindFrame, Label: "A"}
	if err := repo.Create(p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
