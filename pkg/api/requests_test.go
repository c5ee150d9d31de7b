package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_StringForm(t *testing.T) {
	var msg ChatMessage
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg))

	assert.Equal(t, "hello", msg.Content.Text)
	assert.Nil(t, msg.Content.Parts)

	out, err := json.Marshal(msg.Content)
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, string(out))
}

func TestContent_PartsForm(t *testing.T) {
	raw := `{"role":"user","content":[
		{"type":"text","text":"what is this"},
		{"type":"image_url","image_url":{"url":"https://x/y.png","detail":"low"}}
	]}`

	var msg ChatMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	require.Len(t, msg.Content.Parts, 2)
	assert.Equal(t, "what is this", msg.Content.Parts[0].Text)
	require.NotNil(t, msg.Content.Parts[1].ImageURL)
	assert.Equal(t, "https://x/y.png", msg.Content.Parts[1].ImageURL.URL)

	// Parts round-trip as an array, not a string.
	out, err := json.Marshal(msg.Content)
	require.NoError(t, err)
	assert.Equal(t, byte('['), out[0])
}

func TestContent_NullIsEmpty(t *testing.T) {
	var msg ChatMessage
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":null}`), &msg))

	assert.Empty(t, msg.Content.Text)
	assert.Nil(t, msg.Content.Parts)
}

func TestTier_JSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(TierHigh)
	require.NoError(t, err)
	assert.Equal(t, `"high"`, string(out))

	var tier Tier
	require.NoError(t, json.Unmarshal([]byte(`"ultra"`), &tier))
	assert.Equal(t, TierUltra, tier)

	// Legacy numeric form still decodes.
	require.NoError(t, json.Unmarshal([]byte(`1`), &tier))
	assert.Equal(t, TierLow, tier)
}

func TestParseTier_UnknownDefaultsMedium(t *testing.T) {
	assert.Equal(t, TierMedium, ParseTier("warp-speed"))
	assert.Equal(t, TierFast, ParseTier("fast"))
}

func TestRouteResult_Ref(t *testing.T) {
	assert.Equal(t, "local/llama3", RouteResult{Backend: "local", Model: "llama3"}.Ref())
	assert.Equal(t, "llama3", RouteResult{Model: "llama3"}.Ref())
}

func TestChatResponse_Text(t *testing.T) {
	resp := &ChatResponse{Choices: []Choice{{
		Message: &ChatMessage{Role: "assistant", Content: Content{Text: "answer"}},
	}}}
	assert.Equal(t, "answer", resp.Text())

	assert.Empty(t, (&ChatResponse{}).Text())
}
