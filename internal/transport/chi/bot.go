package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	"github.com/kailas-cloud/vecbot/internal/domain/search/request"
	"github.com/kailas-cloud/vecbot/internal/domain/search/result"
	"github.com/kailas-cloud/vecbot/internal/logger"
)

// Bot Framework constants.
const (
	activityTypeInvoke        = "invoke"
	invokeNameExtensionQuery  = "composeExtension/query"
	contentTypeAdaptiveCard   = "application/vnd.microsoft.card.adaptive"
	contentTypeHeroCard       = "application/vnd.microsoft.card.hero"
	adaptiveCardSchema        = "http://adaptivecards.io/schemas/adaptive-card.json"
	adaptiveCardVersion       = "1.4"
	botQueryFailedMessage     = "Search is unavailable right now. Please try again later."
	defaultBotPreviewImageURL = "https://icon-library.com/images/cloud-icon-png/cloud-icon-png-12.jpg"
)

// BotConfig controls how results are rendered as cards.
type BotConfig struct {
	Mode            mode.Mode
	TitleField      string
	DetailField     string
	PreviewImageURL string
}

func (c BotConfig) withDefaults() BotConfig {
	if c.Mode == "" {
		c.Mode = mode.PureVector
	}
	if c.PreviewImageURL == "" {
		c.PreviewImageURL = defaultBotPreviewImageURL
	}
	return c
}

// Activity is the subset of a Bot Framework activity the extension reads.
type Activity struct {
	Type  string          `json:"type"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MessagingExtensionQuery is the value of a composeExtension/query invoke.
type MessagingExtensionQuery struct {
	CommandID  string `json:"commandId,omitempty"`
	Parameters []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters"`
}

// MessagingExtensionResponse is the invoke response body.
type MessagingExtensionResponse struct {
	ComposeExtension MessagingExtensionResult `json:"composeExtension"`
}

// MessagingExtensionResult is either a result list or a plain message.
type MessagingExtensionResult struct {
	Type             string       `json:"type"`
	AttachmentLayout string       `json:"attachmentLayout,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Text             string       `json:"text,omitempty"`
}

// Attachment is a card with an optional preview card shown in the result list.
type Attachment struct {
	ContentType string      `json:"contentType"`
	Content     any         `json:"content"`
	Preview     *Attachment `json:"preview,omitempty"`
}

// AdaptiveCard is a minimal adaptive card.
type AdaptiveCard struct {
	Schema  string      `json:"$schema"`
	Type    string      `json:"type"`
	Version string      `json:"version"`
	Body    []TextBlock `json:"body"`
}

// TextBlock is an adaptive card text element.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Wrap bool   `json:"wrap"`
	Size string `json:"size,omitempty"`
}

// HeroCard is the preview card.
type HeroCard struct {
	Title  string      `json:"title"`
	Text   string      `json:"text,omitempty"`
	Images []CardImage `json:"images,omitempty"`
}

// CardImage is an image reference on a hero card.
type CardImage struct {
	URL string `json:"url"`
}

// BotMessages handles POST /api/messages.
func (s *Server) BotMessages(w http.ResponseWriter, r *http.Request) {
	var act Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid activity: "+err.Error())
		return
	}

	if act.Type != activityTypeInvoke || act.Name != invokeNameExtensionQuery {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	var q MessagingExtensionQuery
	if len(act.Value) > 0 {
		if err := json.Unmarshal(act.Value, &q); err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid query value: "+err.Error())
			return
		}
	}

	text := ""
	if len(q.Parameters) > 0 {
		text = strings.TrimSpace(q.Parameters[0].Value)
	}
	if text == "" {
		writeJSON(w, http.StatusOK, resultList(nil))
		return
	}

	set, err := s.search.Query(r.Context(), request.Params{Mode: s.bot.Mode, Text: text})
	if err != nil {
		logger.FromContext(r.Context()).Error("Bot query failed",
			zap.String("mode", string(s.bot.Mode)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, MessagingExtensionResponse{
			ComposeExtension: MessagingExtensionResult{Type: "message", Text: botQueryFailedMessage},
		})
		return
	}

	attachments := make([]Attachment, 0, len(set.Results))
	for i := range set.Results {
		attachments = append(attachments, s.bot.card(&set.Results[i]))
	}
	writeJSON(w, http.StatusOK, resultList(attachments))
}

func resultList(attachments []Attachment) MessagingExtensionResponse {
	if attachments == nil {
		attachments = []Attachment{}
	}
	return MessagingExtensionResponse{
		ComposeExtension: MessagingExtensionResult{
			Type:             "result",
			AttachmentLayout: "list",
			Attachments:      attachments,
		},
	}
}

func (c BotConfig) card(res *result.SearchResult) Attachment {
	title := fieldText(res.Document, c.TitleField)
	detail := fieldText(res.Document, c.DetailField)

	return Attachment{
		ContentType: contentTypeAdaptiveCard,
		Content: AdaptiveCard{
			Schema:  adaptiveCardSchema,
			Type:    "AdaptiveCard",
			Version: adaptiveCardVersion,
			Body: []TextBlock{
				{Type: "TextBlock", Text: title, Wrap: true, Size: "Large"},
				{Type: "TextBlock", Text: detail, Wrap: true, Size: "Small"},
			},
		},
		Preview: &Attachment{
			ContentType: contentTypeHeroCard,
			Content: HeroCard{
				Title:  title,
				Text:   detail,
				Images: []CardImage{{URL: c.PreviewImageURL}},
			},
		},
	}
}

func fieldText(doc map[string]any, field string) string {
	v, ok := doc[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
