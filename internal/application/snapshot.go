package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/careerboard/internal/model"
)

// ErrProfileMissing はスナップショットの元になる求職者レコードがないことを表す。
var ErrProfileMissing = errors.New("candidate profile not found")

// BuildSnapshot は求職者の現在のプロフィールから応募時点のスナップショットを作る。
//
// 構造化項目（職務詳細、プロジェクト、スキル、学歴、資格、言語）はそれぞれ独立して
// デコードし、壊れた値はその項目だけ空にする。パスワードハッシュと外部IDは写さない。
// エラーになるのは求職者レコード自体がない場合のみ。
func BuildSnapshot(c *model.Candidate, at time.Time) (*model.ProfileSnapshot, error) {
	if c == nil {
		return nil, ErrProfileMissing
	}
	p := c.Profile

	snap := &model.ProfileSnapshot{
		CandidateID:         c.ID,
		FullName:            c.DisplayName,
		Email:               c.Email,
		MobileNumber:        p.MobileNumber,
		Gender:              p.Gender,
		AvatarURL:           c.AvatarURL,
		ExperienceLevel:     p.ExperienceLevel,
		ProfessionalDetails: decodeObject(c.ID, "professional_details", p.ProfessionalDetails),
		Projects:            decodeList(c.ID, "projects", p.Projects),
		Skills:              decodeStrings(c.ID, "skills", p.Skills),
		Education:           decodeList(c.ID, "education", p.Education),
		Certifications:      decodeList(c.ID, "certifications", p.Certifications),
		Languages:           decodeList(c.ID, "languages", p.Languages),
		ResumeURL:           p.ResumeURL,
		CapturedAt:          at.UTC(),
	}
	if p.CTCExpected != nil {
		v := *p.CTCExpected
		snap.CTCExpected = &v
	}
	return snap, nil
}

// decodeObject はJSONオブジェクトをデコードする。空・不正・オブジェクト以外はnil。
func decodeObject(candidateID, field, raw string) map[string]any {
	if isBlank(raw) {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logMalformed(candidateID, field, err)
		return nil
	}
	return out
}

// decodeList はJSON配列を要素ごとの生JSONとしてデコードする。
// 要素をコピーするため、元の文字列とメモリを共有しない。
func decodeList(candidateID, field, raw string) []json.RawMessage {
	if isBlank(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logMalformed(candidateID, field, err)
		return nil
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		out = append(out, append(json.RawMessage(nil), item...))
	}
	return out
}

// decodeStrings は文字列のJSON配列をデコードする。文字列以外の要素と空文字は捨てる。
func decodeStrings(candidateID, field, raw string) []string {
	items := decodeList(candidateID, field, raw)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isBlank(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == "null"
}

func logMalformed(candidateID, field string, err error) {
	slog.Warn("malformed profile field skipped in snapshot",
		slog.String("candidate_id", candidateID),
		slog.String("field", field),
		slog.String("error", err.Error()),
	)
}
