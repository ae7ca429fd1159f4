package extract

import "testing"

func TestClassifyByPosition(t *testing.T) {
	tests := []struct {
		name      string
		img       Image
		wantClass ImageClass
		wantConf  Confidence
	}{
		{
			name:      "no dimensions defaults to content for vision review",
			img:       Image{ID: "img-0.jpeg"},
			wantClass: ClassContent,
			wantConf:  ConfidenceLow,
		},
		{
			name: "tiny logo anywhere on the page",
			img: Image{
				ID: "img-1.jpeg", TopLeftX: 10, TopLeftY: 10, BottomRightX: 60, BottomRightY: 60,
				PageWidth: 1000, PageHeight: 1400,
			},
			wantClass: ClassAdministrative,
			wantConf:  ConfidenceHigh,
		},
		{
			name: "score box in bottom right corner",
			img: Image{
				ID: "img-2.jpeg", TopLeftX: 800, TopLeftY: 1200, BottomRightX: 980, BottomRightY: 1380,
				PageWidth: 1000, PageHeight: 1400,
			},
			wantClass: ClassAdministrative,
			wantConf:  ConfidenceHigh,
		},
		{
			name: "small header image in top margin",
			img: Image{
				ID: "img-3.jpeg", TopLeftX: 300, TopLeftY: 10, BottomRightX: 700, BottomRightY: 70,
				PageWidth: 1000, PageHeight: 1400,
			},
			wantClass: ClassAdministrative,
			wantConf:  ConfidenceMedium,
		},
		{
			name: "large centered diagram",
			img: Image{
				ID: "img-4.jpeg", TopLeftX: 100, TopLeftY: 400, BottomRightX: 900, BottomRightY: 1000,
				PageWidth: 1000, PageHeight: 1400,
			},
			wantClass: ClassContent,
			wantConf:  ConfidenceHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyByPosition(tt.img)
			if got.Class != tt.wantClass {
				t.Errorf("class = %q, want %q (%s)", got.Class, tt.wantClass, got.Reason)
			}
			if got.Conf != tt.wantConf {
				t.Errorf("confidence = %q, want %q (%s)", got.Conf, tt.wantConf, got.Reason)
			}
			if got.Source != SourcePosition {
				t.Errorf("source = %q, want %q", got.Source, SourcePosition)
			}
			if got.ImageID != tt.img.ID {
				t.Errorf("imageID = %q, want %q", got.ImageID, tt.img.ID)
			}
		})
	}
}
