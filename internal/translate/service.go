package translate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownEngine = errors.New("unknown translation engine")
	ErrEmptyText     = errors.New("text is empty")
)

// Service manages translation engines, caches results and processes
// batch caption translation jobs
type Service struct {
	mu            sync.RWMutex
	engines       map[string]Translator
	defaultEngine string
	modelEngine   string // engine defaultModel applies to
	defaultModel  string
	cache         Cache
	captions      CaptionStore
}

// NewService creates a translation service. cache and captions may be nil.
func NewService(defaultEngine string, cache Cache, captions CaptionStore) *Service {
	return &Service{
		engines:       make(map[string]Translator),
		defaultEngine: defaultEngine,
		cache:         cache,
		captions:      captions,
	}
}

// Register adds or replaces an engine
func (s *Service) Register(t Translator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[t.Name()] = t
	log.Printf("[translate] registered %s engine", t.Name())
}

// SetDefault changes the engine used when a request names none
func (s *Service) SetDefault(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultEngine = name
}

// SetDefaultModel sets the model engine uses when neither the request nor
// the engine's model setting names one
func (s *Service) SetDefaultModel(engine, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelEngine, s.defaultModel = engine, model
}

// Default returns the name of the default engine
func (s *Service) Default() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultEngine
}

// Engines returns the registered engine names, sorted
func (s *Service) Engines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) engine(name string) (Translator, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.defaultEngine
	}
	t, ok := s.engines[name]
	if !ok {
		return nil, name, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return t, name, nil
}

// Translate translates req.Text, consulting the cache first.
func (s *Service) Translate(ctx context.Context, req Request) (string, bool, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", false, ErrEmptyText
	}
	engine, name, err := s.engine(req.Provider)
	if err != nil {
		return "", false, err
	}

	key := CacheKey(name, req.ModelID, req.TargetLang, text)
	if s.cache != nil {
		if cached, ok, err := s.cache.GetCachedTranslation(key); err != nil {
			log.Printf("[translate] cache lookup failed: %v", err)
		} else if ok {
			return cached, true, nil
		}
	}

	out, err := engine.Translate(ctx, text, Options{
		TargetLang: NormalizeLang(req.TargetLang),
		Model:      req.ModelID,
	})
	if err != nil {
		return "", false, err
	}
	if out = strings.TrimSpace(out); out == "" {
		return "", false, fmt.Errorf("%s returned an empty translation", name)
	}

	if s.cache != nil {
		if err := s.cache.PutCachedTranslation(key, name, req.ModelID, NormalizeLang(req.TargetLang), out); err != nil {
			log.Printf("[translate] cache store failed: %v", err)
		}
	}
	return out, false, nil
}

// Handle runs a request and folds any failure into the response
func (s *Service) Handle(ctx context.Context, req Request) Response {
	out, cached, err := s.Translate(ctx, req)
	if err != nil {
		log.Printf("[translate] request failed: %v", err)
		return Response{Success: false, Message: err.Error()}
	}
	return Response{Success: true, Translated: out, Cached: cached}
}

// Func binds a provider and model into a function translating one text
// into a target language.
func (s *Service) Func(provider, model string) func(ctx context.Context, text, targetLang string) (string, error) {
	return func(ctx context.Context, text, targetLang string) (string, error) {
		resp := s.Handle(ctx, Request{Text: text, TargetLang: targetLang, ModelID: model, Provider: provider})
		if !resp.Success {
			return "", errors.New(resp.Message)
		}
		return resp.Translated, nil
	}
}
