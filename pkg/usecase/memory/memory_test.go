package memory_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/usecase/memory"
	"google.golang.org/genai"
)

type stubCompressor struct {
	answerCalls  []string
	summaryCalls []string
}

func (s *stubCompressor) CompressAnswer(ctx context.Context, answer string) string {
	s.answerCalls = append(s.answerCalls, answer)
	return "compressed answer"
}

func (s *stubCompressor) CompressSummary(ctx context.Context, summary string) string {
	s.summaryCalls = append(s.summaryCalls, summary)
	return memory.Truncate(summary, memory.SummaryTarget)
}

func TestFinalizeAnswerCompressionTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("751 bytes is compressed", func(t *testing.T) {
		comp := &stubCompressor{}
		mem := memory.New(comp)
		x := mem.Finalize(ctx, "q", strings.Repeat("a", 751))
		gt.A(t, comp.answerCalls).Length(1)
		gt.Equal(t, x.Answer, "compressed answer")
		gt.Equal(t, mem.Exchanges()[0].Answer, "compressed answer")
	})

	t.Run("750 bytes is stored as is", func(t *testing.T) {
		comp := &stubCompressor{}
		mem := memory.New(comp)
		answer := strings.Repeat("a", 750)
		mem.Finalize(ctx, "q", answer)
		gt.A(t, comp.answerCalls).Length(0)
		gt.Equal(t, mem.Exchanges()[0].Answer, answer)
	})
}

func TestFinalizeEviction(t *testing.T) {
	ctx := context.Background()
	comp := &stubCompressor{}
	mem := memory.New(comp)

	for i := 1; i <= 12; i++ {
		mem.Finalize(ctx, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
		gt.True(t, len(mem.Exchanges()) <= memory.MaxExchanges)
	}

	exchanges := mem.Exchanges()
	gt.A(t, exchanges).Length(memory.MaxExchanges)
	gt.Equal(t, exchanges[0].Question, "question 3")
	gt.Equal(t, exchanges[9].Question, "question 12")

	gt.Equal(t, mem.Summary(), "Question: question 1. Answer: answer 1\n\nQuestion: question 2. Answer: answer 2")
	gt.A(t, comp.summaryCalls).Length(0)
}

func TestFinalizeSummaryCompressionTrigger(t *testing.T) {
	ctx := context.Background()

	// Six evicted exchanges render as six "Question: q. Answer: <answer>" blocks (21 bytes
	// of overhead each) joined by five "\n\n" separators: 136 bytes plus the answers.
	fill := func(mem *memory.SessionMemory, firstAnswer int) {
		mem.Finalize(ctx, "q", strings.Repeat("a", firstAnswer))
		for i := 0; i < 5; i++ {
			mem.Finalize(ctx, "q", strings.Repeat("a", 660))
		}
		for i := 0; i < memory.MaxExchanges; i++ {
			mem.Finalize(ctx, "q", "a")
		}
	}

	t.Run("exactly 4096 bytes is kept", func(t *testing.T) {
		comp := &stubCompressor{}
		mem := memory.New(comp)
		fill(mem, 660)
		gt.Equal(t, len(mem.Summary()), 4096)
		gt.A(t, comp.summaryCalls).Length(0)
		gt.A(t, comp.answerCalls).Length(0)
	})

	t.Run("crossing 4096 bytes is compressed to target", func(t *testing.T) {
		comp := &stubCompressor{}
		mem := memory.New(comp)
		fill(mem, 661)
		gt.A(t, comp.summaryCalls).Length(1)
		gt.Equal(t, len(comp.summaryCalls[0]), 4097)
		gt.True(t, len(mem.Summary()) <= memory.SummaryTarget)
		gt.True(t, strings.HasSuffix(mem.Summary(), memory.TruncatedMarker))
	})
}

func TestFinalizeAgesCacheOnce(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(&stubCompressor{})
	params := map[string]any{"query": "MainMenuScreen"}
	mem.Cache().Store("db_get_ux_details", params, model.NewToolResult("db_get_ux_details", params, "ok", nil), 2)

	mem.Finalize(ctx, "q1", "a1")
	gt.Equal(t, mem.Cache().Snapshot()[0].Remaining, 1)

	mem.Finalize(ctx, "q2", "a2")
	gt.Equal(t, mem.Cache().Len(), 0)
}

func TestPrepareTurnInput(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(&stubCompressor{})

	t.Run("first turn is only the question", func(t *testing.T) {
		contents := mem.PrepareTurnInput("hello")
		gt.A(t, contents).Length(1)
		gt.Equal(t, contents[0].Role, genai.RoleUser)
		gt.Equal(t, contents[0].Parts[0].Text, "hello")
	})

	for i := 1; i <= 11; i++ {
		mem.Finalize(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	params := map[string]any{"champion_id": "champion.sw1.droideka"}
	result := model.NewToolResult("db_get_champion_details_byid", params, "ok", map[string]any{"champion_name": "Droideka"})
	mem.Cache().Store("db_get_champion_details_byid", params, result, 5)

	contents := mem.PrepareTurnInput("what about shields?")

	// summary + 10 exchanges * 2 + cached call pair + question
	gt.A(t, contents).Length(1 + 20 + 2 + 1)

	gt.Equal(t, contents[0].Role, genai.RoleUser)
	gt.S(t, contents[0].Parts[0].Text).Contains("Previous conversation summary: Question: q1. Answer: a1")

	gt.Equal(t, contents[1].Parts[0].Text, "q2")
	gt.Equal(t, contents[2].Role, genai.RoleModel)
	gt.Equal(t, contents[2].Parts[0].Text, "a2")
	gt.Equal(t, contents[20].Parts[0].Text, "a11")

	call := contents[21].Parts[0].FunctionCall
	gt.V(t, call).NotNil()
	gt.Equal(t, call.Name, "db_get_champion_details_byid")
	gt.S(t, call.ID).Contains("call_cached_")

	resp := contents[22].Parts[0].FunctionResponse
	gt.V(t, resp).NotNil()
	gt.Equal(t, resp.ID, call.ID)
	gt.Equal(t, resp.Response["champion_name"], any("Droideka"))
	_, hasInternal := resp.Response["internal_info"]
	gt.False(t, hasInternal)

	gt.Equal(t, contents[23].Parts[0].Text, "what about shields?")
}

func TestRecordToolCallStoredWithExchange(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(&stubCompressor{})

	mem.PrepareTurnInput("q")
	mem.RecordToolCall(model.ToolCallRecord{Name: "cache_get_champions_list", Source: model.ToolCallExecuted})
	x := mem.Finalize(ctx, "q", "a")
	gt.A(t, x.ToolCalls).Length(1)

	mem.PrepareTurnInput("q2")
	x2 := mem.Finalize(ctx, "q2", "a2")
	gt.A(t, x2.ToolCalls).Length(0)
}

func TestSnapshotAndInjectionFlag(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(&stubCompressor{})

	gt.False(t, mem.Injected())
	mem.MarkInjected()
	gt.True(t, mem.Injected())

	mem.Finalize(ctx, "q", "a")
	params := map[string]any{"query": "x"}
	mem.Cache().Store("db_get_ux_details", params, model.NewToolResult("db_get_ux_details", params, "ok", nil), 3)

	snap := mem.Snapshot()
	gt.Equal(t, snap.ExchangeCount, 1)
	gt.Equal(t, snap.SummaryBytes, 0)
	gt.True(t, snap.InjectionDone)
	gt.A(t, snap.Cache).Length(1)
	gt.Equal(t, snap.Cache[0].Remaining, 3)

	// taking a snapshot changes nothing
	gt.Equal(t, mem.Snapshot().Cache[0].Remaining, 3)
}
