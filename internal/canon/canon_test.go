package canon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Image Pixel/Spacing", "imagePixelSpacing"},
		{"Exposure (ms)", "exposureMs"},
		{"Camera Pixel Size (um)", "cameraPixelSizeUm"},
		{"Na+ concentration", "naplusConcentration"},
		{"scan_date-time", "scanDateTime"},
		{"already", "already"},
		{"PatientID", "patientID"},
		{"  padded  ", "padded"},
		{"Rotation Step (deg)", "rotationStepDeg"},
		{"Über Größe", "überGröße"},
		{"", ""},
		{"///", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Image Pixel/Spacing", "Exposure (ms)", "a+b", "x__y--z", "Object to Source (mm)",
		"0018,0050", "Filter: Al 0.5mm", "ÅngströmScale", "9th Slice",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		assert.Equal(t, once, Canonicalize(once), "input %q", in)
		for _, bad := range []string{"/", "(", ")", "+", " ", "_", "-"} {
			assert.False(t, strings.Contains(once, bad), "%q contains %q", once, bad)
		}
	}
}

func TestSectionLabel(t *testing.T) {
	assert.Equal(t, "Acquisition", SectionLabel("Acquisition"))
	assert.Equal(t, "User_Interface", SectionLabel("User Interface"))
	assert.Equal(t, "Reconstruction_Parameters", SectionLabel(" Reconstruction  Parameters "))
}
