package main

import (
	"sort"
	"testing"
)

func TestGrowthMinutes(t *testing.T) {
	tests := []struct {
		name  string
		plant string
		boost float64
		want  int
	}{
		{"multi fruit no boost", "Tomates", 0, 100},
		{"multi fruit boosted stem only", "Tomates", 100, 70},
		{"single harvest", "Laitue", 0, 10},
		{"single harvest rounds up", "Laitue", 50, 7},
		{"single fruit counts fruit in boost", "Lune Akari", 100, 43},
		{"negative boost ignored", "Laitue", -30, 10},
		{"unknown plant", "Banane", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GrowthMinutes(tt.plant, tt.boost); got != tt.want {
				t.Errorf("GrowthMinutes(%q, %v) = %d, want %d", tt.plant, tt.boost, got, tt.want)
			}
		})
	}
}

func TestHarvestButton(t *testing.T) {
	tests := []struct {
		plant     string
		want      MouseButton
		wantKnown bool
	}{
		{"Tomates", ButtonRight, true},
		{"Lune Akari", ButtonRight, true},
		{"Laitue", ButtonLeft, true},
		{"Banane", ButtonRight, false},
	}
	for _, tt := range tests {
		got, known := HarvestButton(tt.plant)
		if got != tt.want || known != tt.wantKnown {
			t.Errorf("HarvestButton(%q) = %s, %v; want %s, %v", tt.plant, got, known, tt.want, tt.wantKnown)
		}
	}
}

func TestPlantNamesSorted(t *testing.T) {
	names := PlantNames()
	if len(names) != len(plantCatalog) {
		t.Fatalf("PlantNames() returned %d names, catalog has %d", len(names), len(plantCatalog))
	}
	if !sort.StringsAreSorted(names) {
		t.Error("PlantNames() is not sorted")
	}
	for _, n := range names {
		if _, ok := LookupPlant(n); !ok {
			t.Errorf("LookupPlant(%q) failed for a listed name", n)
		}
	}
}
