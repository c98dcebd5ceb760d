package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvAPIKey         = "MISTRAL_API_KEY"
	EnvBaseURL        = "MISTRAL_BASE_URL"
	EnvChatModel      = "MISTRAL_CHAT_MODEL"
	EnvEmbedModel     = "MISTRAL_EMBED_MODEL"
	EnvTopK           = "TOP_K"
	EnvChunkSize      = "CHUNK_SIZE"
	EnvChunkOverlap   = "CHUNK_OVERLAP"
	EnvFrontendOrigin = "FRONTEND_ORIGIN"
	EnvKnowledgeDir   = "KNOWLEDGE_DIR"
	EnvPort           = "PORT"
)

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides cfg with any of the supported environment variables that are set.
func ApplyEnv(cfg *Config) error {
	setString(&cfg.Provider.APIKey, EnvAPIKey)
	setString(&cfg.Provider.BaseURL, EnvBaseURL)
	setString(&cfg.Provider.ChatModel, EnvChatModel)
	setString(&cfg.Provider.EmbedModel, EnvEmbedModel)
	setString(&cfg.Knowledge.Dir, EnvKnowledgeDir)

	for _, v := range []struct {
		name string
		dst  *int
	}{
		{EnvTopK, &cfg.Retrieval.TopK},
		{EnvChunkSize, &cfg.Chunking.ChunkSize},
		{EnvChunkOverlap, &cfg.Chunking.ChunkOverlap},
		{EnvPort, &cfg.Server.Port},
	} {
		if err := setInt(v.dst, v.name); err != nil {
			return err
		}
	}

	if raw, ok := os.LookupEnv(EnvFrontendOrigin); ok && strings.TrimSpace(raw) != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORSOrigins = origins
	}
	return nil
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = n
	return nil
}
