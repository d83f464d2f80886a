package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func BenchmarkModerator_Censor(b *testing.B) {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, fmt.Sprintf("word%c%c%c", 'a'+i%26, 'a'+(i/26)%26, 'a'+(i/676)%26))
	}
	mod, err := NewModerator(words, '*', log)
	require.NoError(b, err)

	content := strings.Repeat("nothing wrong with this sentence wordabc ", 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(content)
	}
}
