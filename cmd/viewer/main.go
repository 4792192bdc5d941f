package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	script := flag.String("policy", "heuristic", "script name in prefabs/scripts")
	seed := flag.Int64("seed", -1, "override the arena spawn seed")
	watch := flag.Bool("watch", false, "reload prefabs/arena.yaml on change")
	flag.Parse()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("tankrl")

	game, err := NewGame(*script, *seed, *watch)
	if err != nil {
		log.Fatal(err)
	}
	defer game.Close()

	if err := ebiten.RunGame(game); err != nil && err != ebiten.Termination {
		log.Fatal(err)
	}
}
