package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seekwell/seekwell-backend/internal/search"
)

// ContextBuildInput configures one assembled prompt context.
type ContextBuildInput struct {
	Hits        []search.Hit
	ChunkBudget int
	StartIndex  int
	UserQuery   string
	KbMode      bool
	User        UserContext
}

// BuiltContext is the numbered, chunk-budgeted context plus the image
// markers it exposed. ImagePaths maps "docIx_imgIx" to the backend path of
// the referenced image.
type BuiltContext struct {
	Text       string
	ImagePaths map[string]string
}

// buildContext renders one numbered block per hit:
//
//	Index {startIndex + i}
//	{schema-specific rendering}
//
// Chat-channel containers are enriched with the creator's display name via a
// point read.
func buildContext(ctx context.Context, sc search.Client, in ContextBuildInput) (BuiltContext, error) {
	budget := in.ChunkBudget
	if budget <= 0 {
		budget = DefaultChunkBudget
	}
	alloc := allocateChunkBudget(in.Hits, budget)

	out := BuiltContext{ImagePaths: map[string]string{}}
	blocks := make([]string, 0, len(in.Hits))
	for i, h := range in.Hits {
		docIx := in.StartIndex + i
		var b strings.Builder
		fmt.Fprintf(&b, "Index %d\n", docIx)
		renderHit(ctx, sc, &b, h, alloc[i], docIx, in.KbMode, out.ImagePaths)
		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}
	out.Text = strings.Join(blocks, "\n\n")
	return out, nil
}

func renderHit(ctx context.Context, sc search.Client, b *strings.Builder, h search.Hit, chunkLimit, docIx int, kbMode bool, imagePaths map[string]string) {
	switch v := h.(type) {
	case *search.MailHit:
		fmt.Fprintf(b, "App: Gmail\nSubject: %s\n", v.Subject)
		fmt.Fprintf(b, "From: %s\n", v.From)
		if len(v.To) > 0 {
			fmt.Fprintf(b, "To: %s\n", strings.Join(v.To, ", "))
		}
		if len(v.Cc) > 0 {
			fmt.Fprintf(b, "Cc: %s\n", strings.Join(v.Cc, ", "))
		}
		fmt.Fprintf(b, "Date: %s\n", formatMillis(v.Timestamp))
		writeChunks(b, v.Chunks, chunkLimit)

	case *search.EventHit:
		fmt.Fprintf(b, "App: Google Calendar\nEvent: %s\n", v.Name)
		if len(v.Attendees) > 0 {
			fmt.Fprintf(b, "Attendees: %s\n", strings.Join(v.Attendees, ", "))
		}
		fmt.Fprintf(b, "When: %s - %s\n", formatMillis(v.StartTime), formatMillis(v.EndTime))
		if v.Description != "" {
			fmt.Fprintf(b, "Description: %s\n", v.Description)
		}

	case *search.FileHit:
		fmt.Fprintf(b, "App: Google Drive\nTitle: %s\n", v.Title)
		if v.Owner != "" {
			fmt.Fprintf(b, "Owner: %s\n", v.Owner)
		}
		fmt.Fprintf(b, "Modified: %s\n", formatMillis(v.Timestamp))
		writeChunks(b, v.Chunks, chunkLimit)
		writeImageMarkers(b, v.ImageFileNames, docIx, imagePaths)

	case *search.ChatMessageHit:
		fmt.Fprintf(b, "App: Slack\nAuthor: %s\n", v.Username)
		fmt.Fprintf(b, "Date: %s\n", formatMillis(v.Timestamp))
		fmt.Fprintf(b, "Message: %s\n", v.Text)

	case *search.ChatContainerHit:
		fmt.Fprintf(b, "App: Slack\nChannel: %s\n", v.Name)
		if v.Topic != "" {
			fmt.Fprintf(b, "Topic: %s\n", v.Topic)
		}
		if v.Description != "" {
			fmt.Fprintf(b, "Description: %s\n", v.Description)
		}
		if creator := channelCreatorName(ctx, sc, v.Creator); creator != "" {
			fmt.Fprintf(b, "Creator: %s\n", creator)
		}

	case *search.KbFileHit:
		fmt.Fprintf(b, "App: Knowledge Base\nFile: %s\n", v.FileName)
		if kbMode {
			// KB sub-index markers let the model cite individual
			// chunks as [docIx_k].
			limit := chunkLimit
			if limit > len(v.Chunks) {
				limit = len(v.Chunks)
			}
			for k := 0; k < limit; k++ {
				fmt.Fprintf(b, "[%d_%d] %s\n", docIx, k, v.Chunks[k])
			}
		} else {
			writeChunks(b, v.Chunks, chunkLimit)
		}
		writeImageMarkers(b, v.ImageFileNames, docIx, imagePaths)

	case *search.AttachmentHit:
		fmt.Fprintf(b, "App: Attachment\nFile: %s\n", v.FileName)
		writeChunks(b, v.Chunks, chunkLimit)

	case *search.DataSourceHit:
		fmt.Fprintf(b, "App: Data Source\nName: %s\n", v.Name)

	case *search.UserHit:
		fmt.Fprintf(b, "Person: %s <%s>\n", v.Name, v.Email)

	default:
		fmt.Fprintf(b, "Document: %s\n", h.DocID())
	}
}

func writeChunks(b *strings.Builder, chunks []string, limit int) {
	if limit > len(chunks) {
		limit = len(chunks)
	}
	for i := 0; i < limit; i++ {
		c := strings.TrimSpace(chunks[i])
		if c == "" {
			continue
		}
		fmt.Fprintf(b, "%s\n", c)
	}
}

// writeImageMarkers records image markers and resolves their backend paths
// so the stream parser can fetch bytes when the model cites one.
func writeImageMarkers(b *strings.Builder, imageFileNames []string, docIx int, imagePaths map[string]string) {
	for imgIx, name := range imageFileNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := fmt.Sprintf("%d_%d", docIx, imgIx)
		imagePaths[key] = name
		fmt.Fprintf(b, "Image [%s]\n", key)
	}
}

func channelCreatorName(ctx context.Context, sc search.Client, creatorID string) string {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" || sc == nil {
		return ""
	}
	hit, err := sc.GetDocumentOrNull(ctx, search.SchemaUser, creatorID)
	if err != nil || hit == nil {
		return ""
	}
	if u, ok := hit.(*search.UserHit); ok {
		return u.Name
	}
	return ""
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "unknown"
	}
	return time.UnixMilli(ms).UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}
