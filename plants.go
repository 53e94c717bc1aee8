package main

import (
	"math"
	"sort"
)

// Plant describes one crop of the growth station
type Plant struct {
	Stem   int // minutes until the stem is grown
	Fruit  int // minutes per fruit, 0 for single-harvest crops
	Fruits int
}

// plantCatalog lists the crops by their in-game name
var plantCatalog = map[string]Plant{
	"Concombre":            {Stem: 80, Fruit: 0, Fruits: 1},
	"Oignons":              {Stem: 40, Fruit: 0, Fruits: 1},
	"Laitue":               {Stem: 10, Fruit: 0, Fruits: 1},
	"Pois":                 {Stem: 480, Fruit: 80, Fruits: 3},
	"Tomates":              {Stem: 60, Fruit: 20, Fruits: 2},
	"Poivron":              {Stem: 120, Fruit: 120, Fruits: 4},
	"Zucchini":             {Stem: 320, Fruit: 0, Fruits: 1},
	"Ail":                  {Stem: 120, Fruit: 0, Fruits: 1},
	"Glycine glacée":       {Stem: 20, Fruit: 0, Fruits: 1},
	"Wazabi":               {Stem: 600, Fruit: 0, Fruits: 1},
	"Courgette":            {Stem: 1200, Fruit: 0, Fruits: 1},
	"Piment de cayenne":    {Stem: 240, Fruit: 0, Fruits: 1},
	"Vixen":                {Stem: 60, Fruit: 0, Fruits: 1},
	"Lune Akari":           {Stem: 40, Fruit: 45, Fruits: 1},
	"Nénuphar":             {Stem: 300, Fruit: 120, Fruits: 3},
	"Chou":                 {Stem: 240, Fruit: 160, Fruits: 3},
	"Plume de lave":        {Stem: 120, Fruit: 240, Fruits: 4},
	"Fleur du brasier":     {Stem: 40, Fruit: 0, Fruits: 1},
	"Brocoli":              {Stem: 120, Fruit: 80, Fruits: 3},
	"Iris Pyrobrase":       {Stem: 1440, Fruit: 0, Fruits: 1},
	"Vénus attrape-mouche": {Stem: 300, Fruit: 60, Fruits: 1},
	"Graine de l'enfer":    {Stem: 190, Fruit: 0, Fruits: 1},
	"Âme gelée":            {Stem: 80, Fruit: 180, Fruits: 5},
	"Pommes des ténèbres":  {Stem: 360, Fruit: 180, Fruits: 4},
	"Cœur du vide":         {Stem: 960, Fruit: 0, Fruits: 1},
	"Orchidée Abyssale":    {Stem: 360, Fruit: 100, Fruits: 3},
}

// LookupPlant returns the catalog entry for a plant name
func LookupPlant(name string) (Plant, bool) {
	p, ok := plantCatalog[name]
	return p, ok
}

// PlantNames returns the catalog names sorted alphabetically
func PlantNames() []string {
	names := make([]string, 0, len(plantCatalog))
	for name := range plantCatalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GrowthMinutes returns the time a crop needs before harvest, in minutes,
// with the growth boost (percent) applied to the stem. Multi-fruit crops
// grow their fruits one after the other at normal speed. Unknown plants
// return 0.
func GrowthMinutes(name string, boost float64) int {
	p, ok := plantCatalog[name]
	if !ok {
		return 0
	}
	if boost < 0 {
		boost = 0
	}
	factor := 1 + boost/100

	var total float64
	if p.Fruits > 1 {
		total = float64(p.Stem)/factor + float64(p.Fruits*p.Fruit)
	} else {
		total = float64(p.Stem+p.Fruit) / factor
	}
	return int(math.Ceil(total))
}

// HarvestButton returns the mouse button that harvests a crop. Fruiting
// crops are picked with a right click and keep their stem; single-harvest
// crops are broken with a left click. Unknown plants report known=false
// and default to right.
func HarvestButton(name string) (MouseButton, bool) {
	p, ok := plantCatalog[name]
	if !ok {
		return ButtonRight, false
	}
	if p.Fruit > 0 {
		return ButtonRight, true
	}
	return ButtonLeft, true
}
