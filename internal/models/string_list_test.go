package models

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestStringListDecodesLegacySingleString(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"name": "Lamp", "images": " https://cdn.example/lamp.png "})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var p Product
	if err := bson.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(p.Images) != 1 || p.Images[0] != "https://cdn.example/lamp.png" {
		t.Fatalf("expected one trimmed image, got %v", p.Images)
	}
}

func TestStringListDecodesArray(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"images": []string{"a.png", "b.png"}})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var p Product
	if err := bson.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(p.Images) != 2 || p.Images[1] != "b.png" {
		t.Fatalf("unexpected images %v", p.Images)
	}
}

func TestStringListRejectsNumbers(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"images": 42})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var p Product
	if err := bson.Unmarshal(raw, &p); err == nil {
		t.Fatal("expected decode error for numeric images field")
	}
}

func TestNilStringListEncodesAsEmptyArray(t *testing.T) {
	body, err := json.Marshal(Product{Name: "Lamp"})
	if err != nil {
		t.Fatalf("json marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	images, ok := decoded["images"].([]interface{})
	if !ok || len(images) != 0 {
		t.Fatalf("expected images to be an empty array, got %#v", decoded["images"])
	}
}
