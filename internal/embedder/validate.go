package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"gemini-pro",
	"gemini-1",
	"gemini-2",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedder configuration is usable. It returns an
// error when required credentials are missing for the resolved backend, and
// logs a warning if EMBEDDING_MODEL looks like a chat model rather than an
// embedding model.
//
// This is a pre-flight check — call it at startup so operators get a clear
// configuration error rather than a cryptic failure during the first embed
// call.
func Validate(log *slog.Logger) error {
	backend := Backend()

	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found — set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found — set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "gemini":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("embedder: no Google API key found — set GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}

	case "ollama":
		// Local backend, no credential required.

	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: openai, azure, ollama, gemini", backend)
	}

	// Warn if EMBEDDING_MODEL looks like a chat model.
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-3-small, text-embedding-004"),
		)
	}

	return nil
}
