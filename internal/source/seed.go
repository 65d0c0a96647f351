package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// SeedFile は配信元定義ファイルの形式。
//
//	sources:
//	  - name: Agência Senado
//	    url: https://www12.senado.leg.br/noticias/feed
//	    credibility_score: 90
type SeedFile struct {
	Sources []SeedSource `yaml:"sources"`
}

// SeedSource は定義ファイル中の1配信元。
// credibility_scoreを省略した場合は70、is_activeを省略した場合は有効。
type SeedSource struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	Description      string `yaml:"description"`
	CredibilityScore *int   `yaml:"credibility_score"`
	IsActive         *bool  `yaml:"is_active"`
}

// SeedResult は登録結果。
type SeedResult struct {
	Upserted int
	Skipped  []string // 検証に失敗した配信元と理由
}

// ParseSeed はYAMLの配信元定義を読み込む。
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("配信元定義の読み込みに失敗しました: %w", err)
	}
	return &f, nil
}

// Seed は定義ファイルの配信元をURLをキーに登録または更新する。
// 検証に失敗した配信元はスキップし、保存に失敗した場合は中断する。
func (s *Service) Seed(ctx context.Context, f *SeedFile) (*SeedResult, error) {
	result := &SeedResult{}
	for _, def := range f.Sources {
		src, err := s.toSource(def)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", def.URL, err))
			continue
		}
		if err := s.repo.Upsert(ctx, src); err != nil {
			return result, err
		}
		result.Upserted++
	}
	return result, nil
}

func (s *Service) toSource(def SeedSource) (*model.Source, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, model.NewInvalidRequestError("nameは必須です")
	}
	rawURL := strings.TrimSpace(def.URL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, model.NewInvalidURLError(rawURL)
	}
	if s.validator != nil {
		if err := s.validator.ValidateURL(rawURL); err != nil {
			return nil, model.NewSSRFBlockedError()
		}
	}

	cred := model.DefaultCredibility
	if def.CredibilityScore != nil {
		cred = *def.CredibilityScore
	}
	if cred < 0 || cred > 100 {
		return nil, model.NewInvalidRequestError("credibility_scoreは0〜100で指定してください")
	}
	active := true
	if def.IsActive != nil {
		active = *def.IsActive
	}

	return &model.Source{
		Name:             name,
		URL:              rawURL,
		Description:      strings.TrimSpace(def.Description),
		CredibilityScore: cred,
		IsActive:         active,
	}, nil
}
