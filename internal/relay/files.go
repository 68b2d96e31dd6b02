package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nibras/valet/internal/imgutil"
	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/models"
	"github.com/nibras/valet/internal/ocr"
	"github.com/nibras/valet/internal/pdf"
	"github.com/nibras/valet/internal/staging"
	"gorm.io/gorm"
)

// Reply is a handler's response: text, a staged file to deliver, or both.
// The router releases the file after delivery.
type Reply struct {
	Text string
	File *staging.StagedFile
}

// Downloader fetches inbound attachment bytes. Satisfied by Adapter.
type Downloader interface {
	Download(ctx context.Context, att Attachment) (io.ReadCloser, error)
}

// FileHandler processes the commands that move files: the image and PDF
// transforms, OCR, QR generation, and the multi-file merge workflow.
// Every input is staged on arrival and released before the reply goes
// out; generated outputs are released by the router after delivery.
type FileHandler struct {
	store  *staging.Store
	merges *merge.Manager
	db     *gorm.DB
	dl     Downloader
}

// FileHandlerOpts holds parameters for creating a FileHandler.
type FileHandlerOpts struct {
	Store      *staging.Store
	Merges     *merge.Manager
	DB         *gorm.DB
	Downloader Downloader
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(opts FileHandlerOpts) (*FileHandler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("relay: file handler: store is required")
	}
	if opts.Merges == nil {
		return nil, fmt.Errorf("relay: file handler: merge manager is required")
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("relay: file handler: db is required")
	}
	if opts.Downloader == nil {
		return nil, fmt.Errorf("relay: file handler: downloader is required")
	}
	return &FileHandler{
		store:  opts.Store,
		merges: opts.Merges,
		db:     opts.DB,
		dl:     opts.Downloader,
	}, nil
}

// Handles reports whether cmd is a file-moving command.
func (fh *FileHandler) Handles(cmd string) bool {
	switch cmd {
	case "compress", "convert", "resize", "watermark", "ocr", "merge", "qr":
		return true
	}
	return false
}

// Execute runs one file command for a conversation.
func (fh *FileHandler) Execute(ctx context.Context, conv string, msg InboundMessage, cmd, args string) Reply {
	if cmd == "merge" {
		return fh.cmdMerge(ctx, conv, msg, args)
	}
	if cmd == "qr" {
		return fh.cmdQR(ctx, conv, args)
	}

	if len(msg.Attachments) == 0 {
		return Reply{Text: fmt.Sprintf("Attach a file with /%s.", cmd)}
	}
	att := msg.Attachments[0]

	switch cmd {
	case "compress":
		return fh.cmdCompress(ctx, conv, att)
	case "convert":
		return fh.cmdConvert(ctx, conv, att, args)
	case "resize":
		return fh.cmdResize(ctx, conv, att, args)
	case "watermark":
		return fh.cmdWatermark(ctx, conv, att, args)
	case "ocr":
		return fh.cmdOCR(ctx, conv, att)
	}
	return Reply{Text: fmt.Sprintf("Unknown file command: /%s", cmd)}
}

// --- Merge workflow ---

// cmdMerge dispatches /merge, /merge done, and /merge cancel.
func (fh *FileHandler) cmdMerge(ctx context.Context, conv string, msg InboundMessage, args string) Reply {
	switch strings.TrimSpace(args) {
	case "":
		return fh.mergeStart(ctx, conv, msg)
	case "done":
		return fh.mergeDone(ctx, conv)
	case "cancel":
		return fh.mergeCancel(conv)
	default:
		return Reply{Text: "Usage: /merge to start, then /merge done or /merge cancel."}
	}
}

func (fh *FileHandler) mergeStart(ctx context.Context, conv string, msg InboundMessage) Reply {
	fh.merges.Begin(conv)
	if len(msg.Attachments) > 0 {
		return fh.AddToMerge(ctx, conv, msg)
	}
	return Reply{Text: "Collecting PDFs. Send them one by one, then /merge done to combine or /merge cancel to stop."}
}

// AddToMerge downloads the message's attachments into the conversation's
// open merge session. The router calls this for any attachment that
// arrives while a session is collecting.
func (fh *FileHandler) AddToMerge(ctx context.Context, conv string, msg InboundMessage) Reply {
	var count int
	for _, att := range msg.Attachments {
		rc, err := fh.dl.Download(ctx, att)
		if err != nil {
			return Reply{Text: fmt.Sprintf("Could not download %s: %v", att.Name, err)}
		}
		count, err = fh.merges.Add(ctx, conv, att.Name, rc)
		rc.Close()
		if err != nil {
			return Reply{Text: fmt.Sprintf("Could not add %s: %v", att.Name, err)}
		}
	}
	return Reply{Text: fmt.Sprintf("Got it — %d file(s) collected. /merge done when ready.", count)}
}

func (fh *FileHandler) mergeDone(ctx context.Context, conv string) Reply {
	count := fh.merges.PendingCount(conv)
	out, err := fh.merges.Complete(ctx, conv)
	switch {
	case errors.Is(err, merge.ErrNoSession):
		return Reply{Text: "No merge in progress. Start one with /merge."}
	case errors.Is(err, merge.ErrNothingToMerge):
		return Reply{Text: "Nothing to merge yet. Send some PDFs first."}
	case err != nil:
		fh.logMerge(conv, "failed", count, err.Error())
		var malformed *merge.MalformedInputError
		if errors.As(err, &malformed) {
			return Reply{Text: fmt.Sprintf("Merge failed: file %d (%s) is not a valid PDF. All collected files were discarded.",
				malformed.Position, malformed.Name)}
		}
		return Reply{Text: fmt.Sprintf("Merge failed: %v. All collected files were discarded.", err)}
	}
	fh.logMerge(conv, "merged", count, "")
	return Reply{Text: fmt.Sprintf("Merged %d file(s).", count), File: out}
}

func (fh *FileHandler) mergeCancel(conv string) Reply {
	count := fh.merges.PendingCount(conv)
	if err := fh.merges.Cancel(conv); err != nil {
		return Reply{Text: "No merge in progress."}
	}
	fh.logMerge(conv, "cancelled", count, "")
	return Reply{Text: fmt.Sprintf("Merge cancelled; %d collected file(s) discarded.", count)}
}

// logMerge writes the audit row for a finished session. Failures are
// logged, not surfaced; the audit trail is advisory.
func (fh *FileHandler) logMerge(conv, outcome string, count int, detail string) {
	row := models.MergeLog{
		Conversation: conv,
		Outcome:      outcome,
		InputCount:   count,
		Detail:       detail,
	}
	if err := fh.db.Create(&row).Error; err != nil {
		log.Printf("relay: merge log [%s %s]: %v", conv, outcome, err)
	}
}

// --- Single-file transforms ---

func (fh *FileHandler) cmdCompress(ctx context.Context, conv string, att Attachment) Reply {
	if isPDF(att) {
		return fh.transform(ctx, conv, att, replaceExt(att.Name, "_compressed.pdf"), pdf.Compress)
	}
	return fh.transform(ctx, conv, att, replaceExt(att.Name, "_compressed.jpg"), imgutil.Compress)
}

func (fh *FileHandler) cmdConvert(ctx context.Context, conv string, att Attachment, args string) Reply {
	format := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(args, ".")))
	if !imgutil.SupportedFormat(format) {
		return Reply{Text: fmt.Sprintf("Usage: /convert fmt — one of %s.", strings.Join(imgutil.Formats, ", "))}
	}
	return fh.transform(ctx, conv, att, replaceExt(att.Name, "."+format), imgutil.Convert)
}

func (fh *FileHandler) cmdResize(ctx context.Context, conv string, att Attachment, args string) Reply {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return Reply{Text: "Usage: /resize width height"}
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Reply{Text: "Width and height must be positive numbers."}
	}
	name := replaceExt(att.Name, fmt.Sprintf("_%dx%d%s", w, h, ext(att.Name)))
	return fh.transform(ctx, conv, att, name, func(in, out string) error {
		return imgutil.Resize(in, out, w, h)
	})
}

func (fh *FileHandler) cmdWatermark(ctx context.Context, conv string, att Attachment, args string) Reply {
	text := strings.TrimSpace(args)
	if text == "" {
		return Reply{Text: "Usage: /watermark your text"}
	}
	name := replaceExt(att.Name, "_marked"+ext(att.Name))
	return fh.transform(ctx, conv, att, name, func(in, out string) error {
		return imgutil.Watermark(in, out, text)
	})
}

func (fh *FileHandler) cmdOCR(ctx context.Context, conv string, att Attachment) Reply {
	in, err := fh.stageAttachment(ctx, conv, att)
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not download %s: %v", att.Name, err)}
	}
	defer fh.store.Release(in)

	text, err := ocr.Extract(in.Path)
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not read text from %s: %v", att.Name, err)}
	}
	if text == "" {
		return Reply{Text: "No text found in the image."}
	}
	return Reply{Text: text}
}

func (fh *FileHandler) cmdQR(ctx context.Context, conv, args string) Reply {
	content := strings.TrimSpace(args)
	if content == "" {
		return Reply{Text: "Usage: /qr text or url"}
	}
	png, err := imgutil.QRCode(content)
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not build the QR code: %v", err)}
	}
	out, err := fh.store.Stage(conv, "qr.png", staging.OriginGenerated, bytes.NewReader(png))
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not stage the QR code: %v", err)}
	}
	return Reply{Text: "Here's your QR code.", File: out}
}

// transform stages the attachment, runs fn from the staged input to a
// staged output, and hands the output back for delivery. The input is
// always released here; the output is released on failure only.
func (fh *FileHandler) transform(ctx context.Context, conv string, att Attachment, outName string, fn func(in, out string) error) Reply {
	in, err := fh.stageAttachment(ctx, conv, att)
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not download %s: %v", att.Name, err)}
	}
	defer fh.store.Release(in)

	out, err := fh.store.Stage(conv, outName, staging.OriginGenerated, strings.NewReader(""))
	if err != nil {
		return Reply{Text: fmt.Sprintf("Could not stage the output: %v", err)}
	}
	if err := fn(in.Path, out.Path); err != nil {
		fh.store.Release(out)
		return Reply{Text: fmt.Sprintf("Could not process %s: %v", att.Name, err)}
	}
	return Reply{File: out}
}

// stageAttachment downloads one attachment into the conversation's scope.
func (fh *FileHandler) stageAttachment(ctx context.Context, conv string, att Attachment) (*staging.StagedFile, error) {
	rc, err := fh.dl.Download(ctx, att)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return fh.store.Stage(conv, att.Name, staging.OriginInbound, rc)
}

// isPDF reports whether the attachment looks like a PDF, by MIME type or
// file extension.
func isPDF(att Attachment) bool {
	if strings.Contains(att.ContentType, "pdf") {
		return true
	}
	return strings.EqualFold(ext(att.Name), ".pdf")
}

// ext returns the lowercase extension including the dot.
func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// replaceExt strips name's extension and appends suffix.
func replaceExt(name, suffix string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + suffix
}
