package candidate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hitoshi/careerboard/internal/model"
	"github.com/hitoshi/careerboard/internal/repository"
	"github.com/hitoshi/careerboard/internal/security"
)

// --- モック定義 ---

type mockCandidateRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Candidate, error)
	updateProfileFn func(ctx context.Context, c *model.Candidate) error
	updated         *model.Candidate
}

func (m *mockCandidateRepo) FindByID(ctx context.Context, id string) (*model.Candidate, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCandidateRepo) FindByEmail(context.Context, string) (*model.Candidate, error) {
	return nil, nil
}

func (m *mockCandidateRepo) FindByFederatedID(context.Context, string) (*model.Candidate, error) {
	return nil, nil
}

func (m *mockCandidateRepo) Create(context.Context, *model.Candidate) error { return nil }

func (m *mockCandidateRepo) UpdateProfile(ctx context.Context, c *model.Candidate) error {
	m.updated = c
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, c)
	}
	return nil
}

func (m *mockCandidateRepo) UpdatePasswordHash(context.Context, string, string) error { return nil }

func strPtr(s string) *string { return &s }

func newServiceWith(c *model.Candidate) (*Service, *mockCandidateRepo) {
	repo := &mockCandidateRepo{
		findByIDFn: func(_ context.Context, id string) (*model.Candidate, error) {
			if c != nil && c.ID == id {
				return c, nil
			}
			return nil, nil
		},
	}
	return NewService(repo, security.NewTextSanitizer(), security.NewURLGuard()), repo
}

func assertCode(t *testing.T, err error, want string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError %s", err, want)
	}
	if apiErr.Code != want {
		t.Errorf("code = %s, want %s", apiErr.Code, want)
	}
}

// --- テスト ---

func TestGet_NotFound(t *testing.T) {
	svc, _ := newServiceWith(nil)

	_, err := svc.Get(context.Background(), "missing")
	assertCode(t, err, model.ErrCodeProfileNotFound)
}

func TestUpdateProfile_AppliesFields(t *testing.T) {
	svc, repo := newServiceWith(&model.Candidate{ID: "c1", Email: "a@example.com", DisplayName: "Alice"})
	ctc := 900000.0

	got, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{
		FullName:            strPtr("  <b>Alice</b> Smith "),
		MobileNumber:        strPtr(" 090-0000-0000 "),
		CTCExpected:         &ctc,
		ResumeURL:           strPtr("https://cdn.example.com/alice.pdf"),
		ProfessionalDetails: json.RawMessage(`{ "company": "Acme" }`),
		Skills:              json.RawMessage(`[ "go", "sql" ]`),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	if got.DisplayName != "Alice Smith" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
	if got.Profile.MobileNumber != "090-0000-0000" {
		t.Errorf("MobileNumber = %q", got.Profile.MobileNumber)
	}
	if got.Profile.Skills != `["go","sql"]` {
		t.Errorf("Skills = %q, want compact JSON", got.Profile.Skills)
	}
	if got.Profile.ProfessionalDetails != `{"company":"Acme"}` {
		t.Errorf("ProfessionalDetails = %q", got.Profile.ProfessionalDetails)
	}
	if got.Profile.CTCExpected == nil || *got.Profile.CTCExpected != ctc {
		t.Errorf("CTCExpected = %v", got.Profile.CTCExpected)
	}
	if repo.updated == nil || repo.updated.UpdatedAt.IsZero() {
		t.Error("repository UpdateProfile not called with UpdatedAt set")
	}
}

func TestUpdateProfile_NilFieldsUnchanged(t *testing.T) {
	svc, _ := newServiceWith(&model.Candidate{
		ID:          "c1",
		DisplayName: "Alice",
		Profile:     model.CandidateProfile{Skills: `["go"]`, ResumeURL: "https://cdn.example.com/r.pdf"},
	})

	got, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Gender: strPtr("female")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.DisplayName != "Alice" || got.Profile.Skills != `["go"]` || got.Profile.ResumeURL == "" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestUpdateProfile_ClearsWithEmptyAndNull(t *testing.T) {
	svc, _ := newServiceWith(&model.Candidate{
		ID:        "c1",
		AvatarURL: "https://cdn.example.com/a.png",
		Profile:   model.CandidateProfile{Projects: `[{"name":"x"}]`},
	})

	got, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{
		AvatarURL: strPtr(""),
		Projects:  json.RawMessage(`null`),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if got.AvatarURL != "" || got.Profile.Projects != "" {
		t.Errorf("avatar=%q projects=%q, want both cleared", got.AvatarURL, got.Profile.Projects)
	}
}

func TestUpdateProfile_Rejections(t *testing.T) {
	negative := -1.0
	tests := []struct {
		name     string
		upd      ProfileUpdate
		wantCode string
	}{
		{name: "empty name", upd: ProfileUpdate{FullName: strPtr("<script></script>")}, wantCode: model.ErrCodeValidation},
		{name: "negative ctc", upd: ProfileUpdate{CTCExpected: &negative}, wantCode: model.ErrCodeValidation},
		{name: "private resume url", upd: ProfileUpdate{ResumeURL: strPtr("https://192.168.0.10/cv.pdf")}, wantCode: model.ErrCodeInvalidURL},
		{name: "javascript avatar", upd: ProfileUpdate{AvatarURL: strPtr("javascript:alert(1)")}, wantCode: model.ErrCodeInvalidURL},
		{name: "skills not array", upd: ProfileUpdate{Skills: json.RawMessage(`"go"`)}, wantCode: model.ErrCodeValidation},
		{name: "details not object", upd: ProfileUpdate{ProfessionalDetails: json.RawMessage(`[1]`)}, wantCode: model.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newServiceWith(&model.Candidate{ID: "c1", DisplayName: "Alice"})

			_, err := svc.UpdateProfile(context.Background(), "c1", tt.upd)
			assertCode(t, err, tt.wantCode)
			if repo.updated != nil {
				t.Error("repository must not be called on validation failure")
			}
		})
	}
}

func TestUpdateProfile_RowVanished(t *testing.T) {
	svc, repo := newServiceWith(&model.Candidate{ID: "c1", DisplayName: "Alice"})
	repo.updateProfileFn = func(context.Context, *model.Candidate) error {
		return repository.ErrNotFound
	}

	_, err := svc.UpdateProfile(context.Background(), "c1", ProfileUpdate{Gender: strPtr("x")})
	assertCode(t, err, model.ErrCodeProfileNotFound)
}
