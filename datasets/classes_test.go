package datasets

import (
	"errors"
	"reflect"
	"testing"
)

func TestDeriveClassesLexicographic(t *testing.T) {
	paths := []string{"data/cat_1.png", "data/dog_1.png", "data/cat_2.png"}

	labels, names, err := DeriveClasses(paths, 2)
	if err != nil {
		t.Fatalf("DeriveClasses failed: %v", err)
	}
	if !reflect.DeepEqual(labels, []int{0, 1, 0}) {
		t.Fatalf("unexpected labels %v", labels)
	}
	if !reflect.DeepEqual(names, []string{"cat", "dog"}) {
		t.Fatalf("unexpected class names %v", names)
	}
}

func TestDeriveClassesOrderIndependent(t *testing.T) {
	// The canonical class numbering must not depend on input order.
	forward := []string{"a/ant_0.png", "a/bee_0.png", "a/cow_0.png"}
	reversed := []string{"a/cow_0.png", "a/bee_0.png", "a/ant_0.png"}

	_, namesF, err := DeriveClasses(forward, 3)
	if err != nil {
		t.Fatalf("DeriveClasses(forward) failed: %v", err)
	}
	_, namesR, err := DeriveClasses(reversed, 3)
	if err != nil {
		t.Fatalf("DeriveClasses(reversed) failed: %v", err)
	}
	if !reflect.DeepEqual(namesF, namesR) {
		t.Fatalf("class tables differ: %v vs %v", namesF, namesR)
	}

	labels, _, err := DeriveClasses(reversed, 3)
	if err != nil {
		t.Fatalf("DeriveClasses failed: %v", err)
	}
	if !reflect.DeepEqual(labels, []int{2, 1, 0}) {
		t.Fatalf("unexpected labels %v", labels)
	}
}

func TestDeriveClassesCountMismatch(t *testing.T) {
	paths := []string{"data/cat_1.png", "data/dog_1.png", "data/cat_2.png"}
	if _, _, err := DeriveClasses(paths, 3); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
