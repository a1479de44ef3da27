package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/h2non/filetype"
	"github.com/maheshrc27/genposting/internal/models"
	"github.com/maheshrc27/genposting/internal/queue"
	"github.com/maheshrc27/genposting/internal/service"
	"github.com/maheshrc27/genposting/internal/transfer"
)

// Dispatcher is what the HTTP layer needs from the dispatch loop.
type Dispatcher interface {
	Nudge()
	PublishNow(ctx context.Context, platform models.Platform, req service.PublishRequest, comments []string) (service.PublishResult, service.CommentReport, error)
}

// LinkedInUploader turns a file into a LinkedIn digitalmediaAsset URN.
type LinkedInUploader interface {
	UploadMedia(ctx context.Context, accessToken string, r io.Reader, contentType string, isVideo bool) (string, error)
}

type PostHandler struct {
	s          service.PostService
	dispatcher Dispatcher
	enqueuer   queue.Enqueuer
	linkedIn   LinkedInUploader
}

// NewPostHandler builds the post routes. enqueuer may be nil, in which case
// posts are picked up by the regular dispatch interval.
func NewPostHandler(s service.PostService, dispatcher Dispatcher, enqueuer queue.Enqueuer, linkedIn LinkedInUploader) *PostHandler {
	return &PostHandler{s: s, dispatcher: dispatcher, enqueuer: enqueuer, linkedIn: linkedIn}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	var files [][]byte

	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			slog.Error(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse form",
			})
		}
		if err := postFromForm(c, form, &pc); err != nil {
			return sendError(c, err)
		}
		if files, err = readFiles(form.File["files"]); err != nil {
			return sendError(c, err)
		}
	} else if err := c.BodyParser(&pc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	toLinkedIn := len(files) > 0 && models.Platform(strings.ToLower(pc.Platform)) == models.PlatformLinkedIn
	if toLinkedIn && pc.MediaType == "" {
		pc.MediaType = linkedInCategory(files[0])
	}

	// Nothing is uploaded until the post and every file have been accepted.
	if err := h.s.ValidatePost(&pc); err != nil {
		return sendError(c, err)
	}
	var urls []string
	var err error
	if toLinkedIn {
		urls, err = h.uploadToLinkedIn(c.Context(), pc.AccessToken, files)
	} else {
		urls, err = h.uploadFiles(c.Context(), files)
	}
	if err != nil {
		return sendError(c, err)
	}
	pc.MediaReferences = append(pc.MediaReferences, urls...)

	post, delay, err := h.s.CreatePost(c.Context(), &pc)
	if err != nil {
		return sendError(c, err)
	}

	log.Printf("Post %s created by %q", post.ID, GetSubject(c))
	h.schedule(post.ID, delay)

	return c.Status(fiber.StatusCreated).JSON(post)
}

func postFromForm(c *fiber.Ctx, form *multipart.Form, pc *transfer.PostCreation) error {
	scheduledTime, err := parseScheduledTime(c.FormValue("scheduled_time"))
	if err != nil {
		return fmt.Errorf("%w: invalid scheduled time format", service.ErrInvalidPost)
	}

	pc.Platform = c.FormValue("platform")
	pc.PlatformUserID = c.FormValue("platform_user_id")
	pc.AccessToken = c.FormValue("access_token")
	pc.Content = c.FormValue("content")
	pc.MediaType = c.FormValue("media_type")
	pc.PostType = c.FormValue("post_type")
	pc.ThumbnailURL = c.FormValue("thumbnail_url")
	pc.Comments = transfer.SplitComments(c.FormValue("comments"))
	pc.ScheduledTime = scheduledTime
	pc.MediaReferences = form.Value["media_references"]
	return nil
}

func readFiles(files []*multipart.FileHeader) ([][]byte, error) {
	out := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}
		out = append(out, data)
	}
	return out, nil
}

// uploadFiles checks every file before uploading any of them.
func (h *PostHandler) uploadFiles(ctx context.Context, files [][]byte) ([]string, error) {
	for _, data := range files {
		if err := h.s.ValidateMedia(data); err != nil {
			return nil, err
		}
	}

	urls := make([]string, 0, len(files))
	for _, data := range files {
		url, err := h.s.UploadMedia(ctx, data)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// uploadToLinkedIn checks every file, then uploads each one as a LinkedIn
// asset owned by the token holder.
func (h *PostHandler) uploadToLinkedIn(ctx context.Context, accessToken string, files [][]byte) ([]string, error) {
	if h.linkedIn == nil {
		return nil, errors.New("linkedin uploads are not configured")
	}
	for _, data := range files {
		if err := h.s.ValidateMedia(data); err != nil {
			return nil, err
		}
	}

	urns := make([]string, 0, len(files))
	for _, data := range files {
		kind, _ := filetype.Match(data)
		urn, err := h.linkedIn.UploadMedia(ctx, accessToken, bytes.NewReader(data), kind.MIME.Value, filetype.IsVideo(data))
		if err != nil {
			return nil, err
		}
		urns = append(urns, urn)
	}
	return urns, nil
}

func linkedInCategory(data []byte) string {
	if filetype.IsVideo(data) {
		return "VIDEO"
	}
	return "IMAGE"
}

// UploadLinkedInMedia uploads files as LinkedIn assets and returns their URNs
// for use as media references on LinkedIn posts.
func (h *PostHandler) UploadLinkedInMedia(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	token := c.Get("X-LinkedIn-Token", c.FormValue("access_token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "LinkedIn access token is required",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files selected",
		})
	}

	data, err := readFiles(files)
	if err != nil {
		return sendError(c, err)
	}
	urns, err := h.uploadToLinkedIn(c.Context(), token, data)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPost) {
			return sendError(c, err)
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to upload media to LinkedIn",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media_references": urns,
		"media_type":       linkedInCategory(data[0]),
	})
}

func (h *PostHandler) UploadMedia(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files selected",
		})
	}

	data, err := readFiles(files)
	if err != nil {
		return sendError(c, err)
	}
	urls, err := h.uploadFiles(c.Context(), data)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media_references": urls,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		post, err := h.s.PostInfo(c.Context(), id)
		if err != nil {
			return sendError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	if status := c.Query("status"); status != "" {
		filtered := posts[:0]
		for _, p := range posts {
			if string(p.Status) == status {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.PostInfo(c.Context(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	post, delay, err := h.s.UpdatePost(c.Context(), c.Params("id"), &pu)
	if err != nil {
		return sendError(c, err)
	}
	if pu.ScheduledTime != nil {
		h.schedule(post.ID, delay)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), c.Params("id")); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	history, err := h.s.History(c.Context(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(history)
}

// PublishNow publishes without scheduling; nothing is stored.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	var body transfer.PublishNow
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	platform := models.Platform(strings.ToLower(c.Params("platform")))
	if !platform.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported platform",
		})
	}

	postType, err := service.ParsePostType(platform, body.PostType)
	if err != nil {
		return sendError(c, err)
	}

	post := models.ScheduledPost{Platform: platform, MediaType: strings.ToUpper(body.MediaType), PostType: postType}
	result, report, err := h.dispatcher.PublishNow(c.Context(), platform, service.PublishRequest{
		AccessToken:     body.AccessToken,
		UserID:          body.PlatformUserID,
		Content:         body.Content,
		MediaReferences: body.MediaReferences,
		Subtype:         post.Subtype(),
	}, body.Comments)
	if err != nil {
		return sendError(c, err)
	}

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(transfer.PublishNowResult{
		Success:           result.Success,
		PublishedID:       result.PublishedID,
		Error:             result.Reason(),
		CommentsAttempted: report.Attempted,
		CommentErrors:     report.Errors,
	})
}

// schedule asks the queue to wake the dispatcher when the post is due, or
// nudges it straight away when the post is already due.
func (h *PostHandler) schedule(postID string, delay time.Duration) {
	if delay <= 0 && h.dispatcher != nil {
		h.dispatcher.Nudge()
		return
	}
	if h.enqueuer == nil {
		return
	}
	if err := queue.EnqueuePost(h.enqueuer, queue.SchedulePostPayload{PostID: postID}, delay); err != nil {
		slog.Info("Error scheduling post wake-up", "post_id", postID, "error", err.Error())
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}
