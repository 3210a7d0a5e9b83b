package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xcyber/portal/internal/models"
	"github.com/xcyber/portal/internal/services"
)

func seededStore(t *testing.T, snapshot string) *MemoryStore {
	t.Helper()
	seed, err := DefaultSeed(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := NewMemoryStore(seed, snapshot)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestMemoryStore_SectionOrder(t *testing.T) {
	s := seededStore(t, "")
	sec, err := s.InsertSection(&models.Section{ID: "sec-new", ProviderID: "prov-safeharbor", Title: "Claims"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if sec.Order != 3 {
		t.Fatalf("order got %d, want 3", sec.Order)
	}
	secs, _ := s.ListSections("prov-safeharbor")
	for i := 1; i < len(secs); i++ {
		if secs[i-1].Order > secs[i].Order {
			t.Fatalf("sections not sorted: %d before %d", secs[i-1].Order, secs[i].Order)
		}
	}
	if _, err := s.InsertSection(&models.Section{ID: "x", ProviderID: "nope"}); !services.IsCode(err, services.ErrorNotFound) {
		t.Fatalf("unknown provider: got %v", err)
	}
}

func TestMemoryStore_OrderCollisionMatchesService(t *testing.T) {
	s := seededStore(t, "")
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, at time.Time) {
		if _, err := s.InsertSection(&models.Section{ID: id, ProviderID: "prov-evergreen", Title: id, CreatedAt: at}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	mk("z-first", t0)
	mk("y-second", t0.Add(time.Minute))
	if _, err := s.DeleteSection("z-first"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// gets order 2 again, colliding with y-second
	mk("a-third", t0.Add(2*time.Minute))

	secs, err := s.ListSections("prov-evergreen")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(secs) != 2 || secs[0].ID != "y-second" || secs[1].ID != "a-third" {
		t.Fatalf("store order got %v, want [y-second a-third]", sectionIDs(secs))
	}
	form, err := services.NewSchemaService(s).ProviderForm("prov-evergreen")
	if err != nil {
		t.Fatalf("ProviderForm: %v", err)
	}
	if len(form.Sections) != 2 || form.Sections[0].Section.ID != "y-second" {
		t.Fatalf("service order disagrees with store")
	}
}

func sectionIDs(secs []*models.Section) []string {
	out := make([]string, 0, len(secs))
	for _, s := range secs {
		out = append(out, s.ID)
	}
	return out
}

func TestMemoryStore_UpsertKeepsOneResponse(t *testing.T) {
	s := seededStore(t, "")
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range []string{"Jane", "Jane Q. Doe"} {
		_, err := s.UpsertResponse(&models.Response{ID: "r-new", UserID: "u-jane", ProviderID: "prov-safeharbor", SectionID: "sec-sh-personal", QuestionID: "q-sh-name", Answer: models.Single(v), CreatedAt: at, UpdatedAt: at.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	rs, _ := s.ListResponsesByUser("u-jane", "prov-safeharbor")
	n := 0
	for _, r := range rs {
		if r.QuestionID == "q-sh-name" {
			n++
			if r.Answer.Text() != "Jane Q. Doe" {
				t.Fatalf("answer got %q", r.Answer.Text())
			}
			if r.ID != "r-jane-name" {
				t.Fatalf("upsert should keep the original id, got %s", r.ID)
			}
		}
	}
	if n != 1 {
		t.Fatalf("responses for question got %d, want 1", n)
	}
	if _, err := s.UpsertResponse(&models.Response{UserID: "u-jane", SectionID: "sec-sh-vehicle", QuestionID: "q-sh-name"}); err == nil {
		t.Fatal("expected error for question outside section")
	}
}

func TestMemoryStore_CascadeDelete(t *testing.T) {
	s := seededStore(t, "")
	ok, err := s.DeleteSection("sec-sh-vehicle")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	qs, _ := s.ListQuestions("sec-sh-vehicle")
	if len(qs) != 0 {
		t.Fatalf("questions left: %d", len(qs))
	}
	rs, _ := s.ListResponses()
	for _, r := range rs {
		if r.SectionID == "sec-sh-vehicle" {
			t.Fatalf("dangling response %s", r.ID)
		}
	}
	if ok, _ := s.DeleteQuestion("q-sh-name"); !ok {
		t.Fatal("delete question reported missing")
	}
	rs, _ = s.ListResponses()
	if len(rs) != 0 {
		t.Fatalf("responses left: %d", len(rs))
	}
	if ok, _ := s.DeleteQuestion("q-sh-name"); ok {
		t.Fatal("second delete should report missing")
	}
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	s := seededStore(t, "")
	err := s.AddUser(&models.User{ID: "u2", Email: "jane@example.com"})
	if err != services.ErrEmailExists {
		t.Fatalf("got %v, want ErrEmailExists", err)
	}
	if err := s.AddUser(&models.User{ID: "u3", Email: "Jane@example.com"}); err != nil {
		t.Fatalf("emails match exactly, got %v", err)
	}
	users, _ := s.ListUsers()
	if len(users) != 4 {
		t.Fatalf("users got %d, want 4", len(users))
	}
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.json")
	s := seededStore(t, path)
	at := time.Now().UTC()
	if _, err := s.UpsertResponse(&models.Response{ID: "r-x", UserID: "u-jane", ProviderID: "prov-pinnacle", SectionID: "sec-pl-health", QuestionID: "q-pl-smoker", Answer: models.Single("No"), CreatedAt: at, UpdatedAt: at}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	reloaded := seededStore(t, path)
	rs, _ := reloaded.ListResponsesByUser("u-jane", "")
	if len(rs) != 3 {
		t.Fatalf("reloaded responses got %d, want 3", len(rs))
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s := seededStore(t, "")
	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	ps, _ := s.ListProviders()
	if len(ps) != 0 {
		t.Fatalf("providers after reset: %d", len(ps))
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	body := `{"providers":[{"id":"p1","name":"P"}],"users":[{"id":"u1","email":"a@b.c","role":"user","password":"pw"}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeedFile(path, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seed.Users) != 1 || len(seed.Users[0].PassHash) == 0 {
		t.Fatalf("password not hashed: %+v", seed.Users)
	}
	if seed.Users[0].Password != "" {
		t.Fatal("plaintext password kept")
	}
	if bcrypt.CompareHashAndPassword(seed.Users[0].PassHash, []byte("pw")) != nil {
		t.Fatal("hash does not match")
	}
}

func TestMemoryStore_Snapshot(t *testing.T) {
	s := seededStore(t, "")
	seed := s.Snapshot()
	if len(seed.Providers) != 3 || len(seed.Users) != 3 || len(seed.Responses) != 2 {
		t.Fatalf("snapshot sizes: %d providers %d users %d responses", len(seed.Providers), len(seed.Users), len(seed.Responses))
	}
	if len(seed.Users[0].PassHash) == 0 {
		t.Fatal("snapshot must keep password hashes")
	}
	copyStore, err := NewMemoryStore(seed, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	qs, _ := copyStore.ListQuestions("sec-sh-vehicle")
	if len(qs) != 4 {
		t.Fatalf("questions got %d, want 4", len(qs))
	}
}
