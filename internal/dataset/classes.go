package dataset

import (
	"fmt"
	"path/filepath"
)

// Classes are the DroneAid ground symbols, in class-index order.
var Classes = []string{
	"children",
	"elderly",
	"firstaid",
	"food",
	"ok",
	"shelter",
	"sos",
	"water",
}

// IconPath returns the asset path for a class inside iconsDir.
func IconPath(iconsDir, class string) string {
	return filepath.Join(iconsDir, fmt.Sprintf("icon-%s.png", class))
}

// ClassIndex returns the position of name in classes, or -1.
func ClassIndex(classes []string, name string) int {
	for i, c := range classes {
		if c == name {
			return i
		}
	}
	return -1
}
