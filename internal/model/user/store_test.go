package user

import (
	"encoding/json"
	"testing"
)

func TestMemoryStoreInsertAndFind(t *testing.T) {
	store := NewMemoryStore(User{Username: "alice"})

	if ok := store.Insert(User{Username: "alice"}); ok {
		t.Fatalf("expected duplicate insert to fail")
	}
	if ok := store.Insert(User{Username: "bob", Email: "bob@example.com"}); !ok {
		t.Fatalf("expected insert of bob to succeed")
	}

	got, ok := store.Find("bob")
	if !ok || got.Email != "bob@example.com" {
		t.Fatalf("unexpected lookup result: %+v ok=%v", got, ok)
	}
	if _, ok := store.Find("carol"); ok {
		t.Fatalf("expected carol to be missing")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", store.Len())
	}
}

func TestPublicOmitsHash(t *testing.T) {
	u := User{Username: "alice", HashedPassword: "$2a$secret"}
	raw, err := json.Marshal(u.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"username":"alice","email":null,"full_name":null,"disabled":false}`
	if string(raw) != want {
		t.Fatalf("unexpected json: %s", raw)
	}
}

func TestRegisteredViewHasNoDisabledFlag(t *testing.T) {
	u := User{Username: "alice", Email: "alice@example.com", Disabled: true, HashedPassword: "$2a$secret"}
	raw, err := json.Marshal(u.Registered())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"username":"alice","email":"alice@example.com","full_name":null}`
	if string(raw) != want {
		t.Fatalf("unexpected json: %s", raw)
	}
}
