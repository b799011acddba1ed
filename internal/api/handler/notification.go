package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rentdesk/rentdesk/internal/api/response"
	"github.com/rentdesk/rentdesk/internal/notify"
	"github.com/rentdesk/rentdesk/internal/store"
	"github.com/rentdesk/rentdesk/pkg/models"
)

// NotificationService creates notifications and changes their read state.
type NotificationService interface {
	Create(ctx context.Context, n *models.Notification) ([]notify.Delivery, error)
	MarkRead(ctx context.Context, id, companyID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, companyID uuid.UUID, recipient string) (int, error)
}

// NotificationReader reads and deletes inbox rows.
type NotificationReader interface {
	GetNotification(ctx context.Context, id, companyID uuid.UUID) (*models.Notification, error)
	ListNotifications(ctx context.Context, filter store.NotificationFilter) ([]*models.Notification, int, error)
	CountUnreadNotifications(ctx context.Context, companyID uuid.UUID, recipient string) (int, error)
	DeleteNotification(ctx context.Context, id, companyID uuid.UUID) error
}

type createNotificationRequest struct {
	Recipient string            `json:"recipient" validate:"required,max=200"`
	Type      string            `json:"type"      validate:"omitempty,max=50"`
	Title     string            `json:"title"     validate:"required,max=200"`
	Body      string            `json:"body"      validate:"max=4000"`
	Channels  []string          `json:"channels"  validate:"omitempty,max=3,dive,oneof=in_app email sms"`
	Email     *string           `json:"email"     validate:"omitempty,email"`
	Phone     *string           `json:"phone"     validate:"omitempty,e164"`
	Metadata  map[string]string `json:"metadata"  validate:"omitempty,max=20"`
}

type createNotificationResponse struct {
	Notification *models.Notification `json:"notification"`
	Deliveries   []notify.Delivery    `json:"deliveries"`
}

// NewCreateNotificationHandler returns an http.HandlerFunc for
// POST /api/v1/notifications.
func NewCreateNotificationHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}

		var req createNotificationRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		n := &models.Notification{
			CompanyID: cid,
			Recipient: req.Recipient,
			Type:      req.Type,
			Title:     req.Title,
			Body:      req.Body,
			Channels:  req.Channels,
			Email:     req.Email,
			Phone:     req.Phone,
			Metadata:  req.Metadata,
		}
		deliveries, err := svc.Create(r.Context(), n)
		if err != nil {
			if errors.Is(err, notify.ErrInvalidNotification) || errors.Is(err, notify.ErrUnknownChannel) {
				response.Error(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
				return
			}
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.Created(w, createNotificationResponse{Notification: n, Deliveries: deliveries})
	}
}

// NewListNotificationsHandler returns an http.HandlerFunc for
// GET /api/v1/notifications.
func NewListNotificationsHandler(nr NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		page, ok := pageParams(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()

		filter := store.NotificationFilter{
			CompanyID: cid,
			Recipient: q.Get("recipient"),
			Type:      q.Get("type"),
			Page:      page,
		}
		if v := q.Get("unread"); v != "" {
			unread, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unread must be true or false", nil)
				return
			}
			filter.UnreadOnly = unread
		}

		items, total, err := nr.ListNotifications(r.Context(), filter)
		if err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.Collection(w, items, response.NewMeta(page.Page, page.Limit, total))
	}
}

// NewUnreadCountHandler returns an http.HandlerFunc for
// GET /api/v1/notifications/unread-count.
func NewUnreadCountHandler(nr NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		recipient := r.URL.Query().Get("recipient")
		count, err := nr.CountUnreadNotifications(r.Context(), cid, recipient)
		if err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.JSON(w, map[string]any{"recipient": recipient, "unread": count})
	}
}

// NewGetNotificationHandler returns an http.HandlerFunc for
// GET /api/v1/notifications/{notificationID}.
func NewGetNotificationHandler(nr NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "notificationID")
		if !ok {
			return
		}
		n, err := nr.GetNotification(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.JSON(w, n)
	}
}

// NewMarkNotificationReadHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/{notificationID}/read.
func NewMarkNotificationReadHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "notificationID")
		if !ok {
			return
		}
		n, err := svc.MarkRead(r.Context(), id, cid)
		if err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.JSON(w, n)
	}
}

type markAllReadRequest struct {
	Recipient string `json:"recipient" validate:"required,max=200"`
}

// NewMarkAllNotificationsReadHandler returns an http.HandlerFunc for
// POST /api/v1/notifications/read-all.
func NewMarkAllNotificationsReadHandler(svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		var req markAllReadRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		n, err := svc.MarkAllRead(r.Context(), cid, req.Recipient)
		if err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.JSON(w, map[string]int{"updated": n})
	}
}

// NewDeleteNotificationHandler returns an http.HandlerFunc for
// DELETE /api/v1/notifications/{notificationID}.
func NewDeleteNotificationHandler(nr NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok := companyID(w, r)
		if !ok {
			return
		}
		id, ok := uuidParam(w, r, "notificationID")
		if !ok {
			return
		}
		if err := nr.DeleteNotification(r.Context(), id, cid); err != nil {
			writeStoreError(w, r, err, "Notification")
			return
		}
		response.NoContent(w)
	}
}
