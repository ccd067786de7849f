package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner with the version tag.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	s1 := termenv.String("       _                __ _               ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("  ___| |_ ___ _ __   / _| | _____      __").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" / __| __/ _ \\ '_ \\ | |_| |/ _ \\ \\ /\\ / /").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" \\__ \\ ||  __/ |_) ||  _| | (_) \\ V  V / ").Foreground(p.Color("#e879f9"))
	s5 := termenv.String(" |___/\\__\\___| .__/ |_| |_|\\___/ \\_/\\_/  ").Foreground(p.Color("#f472b6"))
	s6 := termenv.String("             |_|                         ").Foreground(p.Color("#fb7185"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	if version != "" {
		fmt.Println(termenv.String("  v" + version).Foreground(p.Color("#94a3b8")))
	}
	fmt.Println()
}
