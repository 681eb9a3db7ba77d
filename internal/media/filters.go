package media

import (
	"strings"

	"github.com/retrocast/api/internal/model"
)

// styleFilters is the fixed ffmpeg -vf chain for each built-in style.
var styleFilters = map[model.StyleProfile][]string{
	// scanlines, vignette, warm balance, soft blur, reduced saturation
	model.StyleCRT: {
		"geq=lum='lum(X,Y)':cb='if(mod(Y,2),cb(X,Y)*0.7,cb(X,Y))':cr='if(mod(Y,2),cr(X,Y)*0.7,cr(X,Y))'",
		"vignette=PI/4",
		"colorbalance=rs=0.1:gs=-0.05:bs=-0.1",
		"gblur=sigma=0.5",
		"eq=saturation=0.85",
	},
	// tape grain, desaturation, thick scanlines, aged colour, tape blur
	model.StyleVHS: {
		"noise=c0s=15:c0f=t",
		"eq=saturation=0.75",
		"geq=lum='lum(X,Y)*if(mod(Y,4)<2,0.85,1.0)'",
		"colorbalance=rs=0.15:gs=0.05:bs=-0.1",
		"gblur=sigma=0.8",
	},
	// high contrast, vivid colour, phosphor rows, glow
	model.StyleArcade: {
		"eq=contrast=1.2:brightness=0.05:saturation=1.2",
		"colorbalance=rs=0.1:gs=0.1:bs=0.05",
		"geq=lum='lum(X,Y)*if(mod(Y,3),0.9,1.0)'",
		"gblur=sigma=1.5",
	},
}

// audioFilters gives the old-TV-speaker sound: static, band limit, compression.
var audioFilters = []string{
	"aeval='val(0)+random(0)*0.015':c=same",
	"lowpass=f=8000",
	"acompressor=threshold=0.5:ratio=3:attack=10:release=100",
}

// FilterChain returns the -vf argument for a style.
func FilterChain(style model.StyleProfile) (string, bool) {
	filters, ok := styleFilters[style]
	if !ok {
		return "", false
	}
	return strings.Join(filters, ","), true
}

// AudioFilterChain returns the -af argument applied to every output.
func AudioFilterChain() string {
	return strings.Join(audioFilters, ",")
}
