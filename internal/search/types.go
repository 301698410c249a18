package search

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Schema names are the backend's sddocname discriminator values.
const (
	SchemaMail          = "mail"
	SchemaEvent         = "event"
	SchemaFile          = "file"
	SchemaChatMessage   = "chat_message"
	SchemaChatContainer = "chat_container"
	SchemaKbFile        = "kb_file"
	SchemaAttachment    = "attachment"
	SchemaDataSource    = "datasource"
	SchemaUser          = "user"
)

// App names as classified by the router and stored on citations.
const (
	AppGmail          = "gmail"
	AppCalendar       = "google-calendar"
	AppDrive          = "google-drive"
	AppSlack          = "slack"
	AppKnowledgeBase  = "knowledge-base"
	AppAttachment     = "attachment"
	AppDataSource     = "data-source"
	AppWebSearch      = "web-search"
	AppGoogleWorkspace = "google-workspace"
)

type RankProfile string

const (
	RankNativeRank   RankProfile = "NativeRank"
	RankGlobalSorted RankProfile = "GlobalSorted"
	RankAttachment   RankProfile = "AttachmentRank"
)

// TimestampRange bounds results by epoch milliseconds; nil means unbounded.
type TimestampRange struct {
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

func (r TimestampRange) Empty() bool { return r.From == nil && r.To == nil }

type MailParticipants struct {
	From []string `json:"from,omitempty"`
	To   []string `json:"to,omitempty"`
	Cc   []string `json:"cc,omitempty"`
	Bcc  []string `json:"bcc,omitempty"`
}

// Hit is one search-backend result.
type Hit interface {
	Schema() string
	DocID() string
	Relevance() float64
}

type HitBase struct {
	ID    string  `json:"docId"`
	Score float64 `json:"relevance"`
}

func (h HitBase) DocID() string      { return h.ID }
func (h HitBase) Relevance() float64 { return h.Score }

type MailHit struct {
	HitBase
	ThreadID  string            `json:"threadId"`
	Subject   string            `json:"subject"`
	From      string            `json:"from"`
	To        []string          `json:"to"`
	Cc        []string          `json:"cc"`
	Bcc       []string          `json:"bcc"`
	Timestamp int64             `json:"timestamp"`
	Chunks    []string          `json:"chunks"`
	Labels    []string          `json:"labels"`
	UserMap   map[string]string `json:"userMap"`
	URL       string            `json:"url"`
}

func (MailHit) Schema() string { return SchemaMail }

type EventHit struct {
	HitBase
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Attendees   []string `json:"attendees"`
	StartTime   int64    `json:"startTime"`
	EndTime     int64    `json:"endTime"`
	URL         string   `json:"url"`
}

func (EventHit) Schema() string { return SchemaEvent }

type FileHit struct {
	HitBase
	Title          string   `json:"title"`
	Entity         string   `json:"entity"`
	Owner          string   `json:"owner"`
	Timestamp      int64    `json:"timestamp"`
	Chunks         []string `json:"chunks"`
	ChunkScores    []float64 `json:"chunkScores"`
	ImageFileNames []string `json:"imageFileNames"`
	URL            string   `json:"url"`
}

func (FileHit) Schema() string { return SchemaFile }

type ChatMessageHit struct {
	HitBase
	Text      string `json:"text"`
	ChannelID string `json:"channelId"`
	ThreadID  string `json:"threadId"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url"`
}

func (ChatMessageHit) Schema() string { return SchemaChatMessage }

type ChatContainerHit struct {
	HitBase
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Creator     string `json:"creator"`
	IsPrivate   bool   `json:"isPrivate"`
	URL         string `json:"url"`
}

func (ChatContainerHit) Schema() string { return SchemaChatContainer }

type KbFileHit struct {
	HitBase
	FileName       string   `json:"fileName"`
	CollectionID   string   `json:"collectionId"`
	Chunks         []string `json:"chunks"`
	ChunkScores    []float64 `json:"chunkScores"`
	ImageFileNames []string `json:"imageFileNames"`
}

func (KbFileHit) Schema() string { return SchemaKbFile }

type AttachmentHit struct {
	HitBase
	FileName  string   `json:"fileName"`
	FileType  string   `json:"fileType"`
	MailDocID string   `json:"mailDocId"`
	Chunks    []string `json:"chunks"`
}

func (AttachmentHit) Schema() string { return SchemaAttachment }

type DataSourceHit struct {
	HitBase
	Name string `json:"name"`
}

func (DataSourceHit) Schema() string { return SchemaDataSource }

type UserHit struct {
	HitBase
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (UserHit) Schema() string { return SchemaUser }

// hitEnvelope is the backend's wire shape for one child result.
type hitEnvelope struct {
	Relevance float64         `json:"relevance"`
	Fields    json.RawMessage `json:"fields"`
}

type searchResponse struct {
	Root struct {
		Children []hitEnvelope `json:"children"`
	} `json:"root"`
}

// decodeHit dispatches on fields.sddocname.
func decodeHit(env hitEnvelope) (Hit, error) {
	var disc struct {
		SDDocName string `json:"sddocname"`
	}
	if err := json.Unmarshal(env.Fields, &disc); err != nil {
		return nil, fmt.Errorf("search: decode discriminator: %w", err)
	}
	schema := strings.TrimSpace(disc.SDDocName)

	decode := func(target Hit) (Hit, error) {
		if err := json.Unmarshal(env.Fields, target); err != nil {
			return nil, fmt.Errorf("search: decode %s hit: %w", schema, err)
		}
		return target, nil
	}

	var hit Hit
	var err error
	switch schema {
	case SchemaMail:
		h := &MailHit{}
		hit, err = decode(h)
	case SchemaEvent:
		h := &EventHit{}
		hit, err = decode(h)
	case SchemaFile:
		h := &FileHit{}
		hit, err = decode(h)
	case SchemaChatMessage:
		h := &ChatMessageHit{}
		hit, err = decode(h)
	case SchemaChatContainer:
		h := &ChatContainerHit{}
		hit, err = decode(h)
	case SchemaKbFile:
		h := &KbFileHit{}
		hit, err = decode(h)
	case SchemaAttachment:
		h := &AttachmentHit{}
		hit, err = decode(h)
	case SchemaDataSource:
		h := &DataSourceHit{}
		hit, err = decode(h)
	case SchemaUser:
		h := &UserHit{}
		hit, err = decode(h)
	default:
		return nil, fmt.Errorf("search: unknown schema %q", schema)
	}
	if err != nil {
		return nil, err
	}
	applyRelevance(hit, env.Relevance)
	return hit, nil
}

func applyRelevance(h Hit, rel float64) {
	switch v := h.(type) {
	case *MailHit:
		v.Score = rel
	case *EventHit:
		v.Score = rel
	case *FileHit:
		v.Score = rel
	case *ChatMessageHit:
		v.Score = rel
	case *ChatContainerHit:
		v.Score = rel
	case *KbFileHit:
		v.Score = rel
	case *AttachmentHit:
		v.Score = rel
	case *DataSourceHit:
		v.Score = rel
	case *UserHit:
		v.Score = rel
	}
}

// HitApp maps a hit's schema to the app name used on citations.
func HitApp(h Hit) string {
	switch h.Schema() {
	case SchemaMail:
		return AppGmail
	case SchemaEvent:
		return AppCalendar
	case SchemaFile:
		return AppDrive
	case SchemaChatMessage, SchemaChatContainer:
		return AppSlack
	case SchemaKbFile:
		return AppKnowledgeBase
	case SchemaAttachment:
		return AppAttachment
	case SchemaDataSource:
		return AppDataSource
	default:
		return ""
	}
}

// HitTitle renders a short human title for a hit.
func HitTitle(h Hit) string {
	switch v := h.(type) {
	case *MailHit:
		return v.Subject
	case *EventHit:
		return v.Name
	case *FileHit:
		return v.Title
	case *ChatMessageHit:
		return v.Text
	case *ChatContainerHit:
		return v.Name
	case *KbFileHit:
		return v.FileName
	case *AttachmentHit:
		return v.FileName
	case *DataSourceHit:
		return v.Name
	case *UserHit:
		return v.Name
	default:
		return ""
	}
}

// HitURL returns the hit's client-facing URL when it has one.
func HitURL(h Hit) string {
	switch v := h.(type) {
	case *MailHit:
		return v.URL
	case *EventHit:
		return v.URL
	case *FileHit:
		return v.URL
	case *ChatMessageHit:
		return v.URL
	case *ChatContainerHit:
		return v.URL
	default:
		return ""
	}
}
