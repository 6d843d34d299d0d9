package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/captionsync/backend/internal/caption/segment"
	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/job"
)

// CaptionStore loads and saves captions for batch jobs; db.Database implements it
type CaptionStore interface {
	GetCaption(id string) (*models.Caption, error)
	UpdateCaption(c *models.Caption) error
}

// TranslateCaption fills c.TranslatedText with a sentence-aligned
// translation of c.Text. When the engine merges or splits sentences the
// caption is translated again one sentence at a time so that every source
// sentence maps to exactly one target sentence.
func (s *Service) TranslateCaption(ctx context.Context, c *models.Caption, provider, model string) error {
	sentences := segment.Split(c.Text, segment.Source)
	if len(sentences) == 0 {
		return ErrEmptyText
	}
	lang := NormalizeLang(c.TargetLang)
	if lang == "" {
		lang = "zh"
	}

	out, _, err := s.Translate(ctx, Request{
		Text:       segment.Join(sentences, segment.Source),
		TargetLang: lang,
		ModelID:    model,
		Provider:   provider,
	})
	if err != nil {
		return fmt.Errorf("translate caption %s: %w", c.ID, err)
	}
	units := segment.Split(out, segment.Target)

	if len(units) != len(sentences) && len(sentences) > 1 {
		log.Printf("[translate] caption %s: %d sentences came back as %d, translating per sentence",
			c.ID, len(sentences), len(units))
		units = units[:0]
		for i, sentence := range sentences {
			out, _, err := s.Translate(ctx, Request{Text: sentence, TargetLang: lang, ModelID: model, Provider: provider})
			if err != nil {
				return fmt.Errorf("translate caption %s sentence %d: %w", c.ID, i, err)
			}
			units = append(units, segment.StripSeparators(out))
		}
	}

	c.TranslatedText = segment.Join(units, segment.Target)
	c.TargetLang = lang
	return nil
}

// HandleJob processes a batch caption translation job
func (s *Service) HandleJob(ctx context.Context, j *job.Job, updateProgress func(float64)) error {
	if s.captions == nil {
		return fmt.Errorf("no caption store configured")
	}
	var params job.TranslateParams
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}
	if len(params.CaptionIDs) == 0 {
		return fmt.Errorf("no captions to translate")
	}

	start := time.Now()
	var result job.TranslateResult
	log.Printf("[translate] job %s: %d captions, provider=%s target=%s",
		j.ID, len(params.CaptionIDs), params.Provider, params.TargetLang)

	for i, id := range params.CaptionIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		updateProgress(float64(i) / float64(len(params.CaptionIDs)))

		c, err := s.captions.GetCaption(id)
		if err != nil {
			log.Printf("[translate] job %s: caption %s: %v", j.ID, id, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		if strings.TrimSpace(c.TranslatedText) != "" && !params.Overwrite {
			result.Skipped++
			continue
		}
		if params.TargetLang != "" {
			c.TargetLang = params.TargetLang
		}
		if err := s.TranslateCaption(ctx, c, params.Provider, params.Model); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[translate] job %s: %v", j.ID, err)
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := s.captions.UpdateCaption(c); err != nil {
			return fmt.Errorf("save caption %s: %w", id, err)
		}
		result.Translated++
	}

	result.Duration = time.Since(start).Seconds()
	j.Result, _ = json.Marshal(result)
	updateProgress(1.0)

	if result.Translated == 0 && len(result.Failed) > 0 {
		return fmt.Errorf("all %d captions failed to translate", len(result.Failed))
	}
	log.Printf("[translate] job %s complete: translated=%d skipped=%d failed=%d",
		j.ID, result.Translated, result.Skipped, len(result.Failed))
	return nil
}
