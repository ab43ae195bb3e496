package store

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildUpdate(t *testing.T) {
	u := Update{
		Set:         map[string]any{"LATEST_TRAIN": "2H45"},
		SetOnInsert: map[string]any{"FIXED": false},
		AddToSet:    map[string]any{"CONNECTIONS": "MP0002"},
		Push:        map[string]any{"BERTHS": "MP0002"},
	}

	got := buildUpdate(u)
	want := bson.M{
		"$set":         bson.M{"LATEST_TRAIN": "2H45"},
		"$setOnInsert": bson.M{"FIXED": false},
		"$addToSet":    bson.M{"CONNECTIONS": "MP0002"},
		"$push":        bson.M{"BERTHS": "MP0002"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildUpdate = %v, want %v", got, want)
	}
}

func TestBuildUpdateOmitsEmptyOperators(t *testing.T) {
	got := buildUpdate(Update{Set: map[string]any{"SELECTED": true}})
	if len(got) != 1 {
		t.Fatalf("got %d operators, want 1", len(got))
	}
	if _, ok := got["$set"]; !ok {
		t.Error("missing $set")
	}

	if got := buildUpdate(Update{}); len(got) != 0 {
		t.Errorf("empty update produced %v", got)
	}
}
