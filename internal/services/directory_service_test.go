package services

import (
	"testing"
	"time"

	"github.com/xcyber/portal/internal/models"
)

func TestDirectoryListUsers(t *testing.T) {
	store := fixture()
	store.users[0].PassHash = []byte("hash")
	svc := NewDirectoryService(store)

	all, err := svc.ListUsers("", "")
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Agent" {
		t.Fatalf("users got %+v", all)
	}
	for _, u := range all {
		if u.PassHash != nil {
			t.Fatalf("user %s leaked hash", u.ID)
		}
	}
	agents, _ := svc.ListUsers(models.RoleAgent, "")
	if len(agents) != 1 || agents[0].ID != "A1" {
		t.Fatalf("agents got %+v", agents)
	}
	hits, _ := svc.ListUsers(models.RoleUser, "BOB")
	if len(hits) != 1 || hits[0].ID != "U2" {
		t.Fatalf("search got %+v", hits)
	}
	if _, err := svc.ListUsers("root", ""); !IsCode(err, ErrorInvalid) {
		t.Fatalf("bad role: got %v", err)
	}
}

func TestDirectoryProviderResponses(t *testing.T) {
	store := fixture()
	t0 := time.Now()
	store.responses = []*models.Response{
		resp("R1", "U1", "P1", "S1", "Q1", true, t0),
		resp("R2", "U2", "P1", "S1", "Q1", false, t0),
		resp("R3", "U1", "P1", "S2", "Q3", true, t0),
		resp("R4", "U1", "P2", "S9", "Q9", false, t0),
	}
	groups, err := NewDirectoryService(store).ProviderResponses("P1")
	if err != nil {
		t.Fatalf("ProviderResponses returned error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups got %d, want 2", len(groups))
	}
	if groups[0].User.ID != "U1" || len(groups[0].Responses) != 2 || groups[0].Status != models.StatusSubmitted {
		t.Fatalf("U1 group got %+v", groups[0])
	}
	if groups[1].Status != models.StatusDraft {
		t.Fatalf("U2 status got %s, want DRAFT", groups[1].Status)
	}
	if _, err := NewDirectoryService(store).ProviderResponses("P9"); !IsCode(err, ErrorNotFound) {
		t.Fatalf("unknown provider: got %v", err)
	}
}
