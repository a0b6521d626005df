package repository

import (
	"testing"
	"time"
)

func TestFeedCursor_Before(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := FeedCursor{CreatedAt: at, ID: "b"}

	tests := []struct {
		name      string
		createdAt time.Time
		id        string
		want      bool
	}{
		{"older", at.Add(-time.Second), "z", true},
		{"newer", at.Add(time.Second), "a", false},
		{"same time smaller id", at, "a", true},
		{"same time same id", at, "b", false},
		{"same time larger id", at, "c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Before(tt.createdAt, tt.id); got != tt.want {
				t.Errorf("Before(%v, %q) = %v, want %v", tt.createdAt, tt.id, got, tt.want)
			}
		})
	}

	if !(FeedCursor{}).Before(at, "a") {
		t.Error("zero cursor should include every blog")
	}
}
