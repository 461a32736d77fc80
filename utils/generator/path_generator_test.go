package generator

import (
	"testing"
	"time"
)

func TestUploadPath(t *testing.T) {
	uploadTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	millis := "1705314600000"

	tests := []struct {
		name     string
		fileName string
		want     string
	}{
		{"plain name", "cat.png", "uploads/" + millis + "-cat.png"},
		{"strips directories", "a/b/cat.png", "uploads/" + millis + "-cat.png"},
		{"strips windows directories", `C:\tmp\cat.png`, "uploads/" + millis + "-cat.png"},
		{"empty name", "", "uploads/" + millis + "-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UploadPath(tt.fileName, uploadTime); got != tt.want {
				t.Errorf("UploadPath() = %v, want %v", got, tt.want)
			}
		})
	}
}
