package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/spherre/multisig-service/internal/models"
	"github.com/spherre/multisig-service/internal/service"
)

// CreateNotification persists a new notification
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.notifications (id, account_id, notification_type, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.AccountID, n.Type, n.Title, n.Message, n.CreatedAt)
	if err != nil {
		return storeErr("create notification", err)
	}
	return nil
}

// GetNotification retrieves a notification with its read receipts
func (r *Repository) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	n := &models.Notification{}
	var readBy pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT n.id, n.account_id, n.notification_type, n.title, n.message, n.created_at,
			ARRAY(SELECT nr.member_id::text FROM spherre.notification_reads nr WHERE nr.notification_id = n.id)
		FROM spherre.notifications n
		WHERE n.id = $1`, id).
		Scan(&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Message, &n.CreatedAt, &readBy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: notification %s", service.ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("find notification", err)
	}
	n.ReadBy = []string(readBy)
	return n, nil
}

// ListNotifications retrieves a page of the account's notifications, newest
// first. When unreadForMemberID is set, notifications that member has already
// read are excluded.
func (r *Repository) ListNotifications(ctx context.Context, accountID, unreadForMemberID string, page, perPage int) ([]*models.Notification, *service.Pagination, error) {
	where := "n.account_id = $1"
	args := []any{accountID}
	if unreadForMemberID != "" {
		args = append(args, unreadForMemberID)
		where += fmt.Sprintf(` AND NOT EXISTS (
			SELECT 1 FROM spherre.notification_reads nr
			WHERE nr.notification_id = n.id AND nr.member_id = $%d)`, len(args))
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM spherre.notifications n WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, nil, storeErr("count notifications", err)
	}

	query := fmt.Sprintf(`
		SELECT n.id, n.account_id, n.notification_type, n.title, n.message, n.created_at,
			ARRAY(SELECT nr.member_id::text FROM spherre.notification_reads nr WHERE nr.notification_id = n.id)
		FROM spherre.notifications n
		WHERE %s
		ORDER BY n.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, storeErr("list notifications", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var readBy pq.StringArray
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Type, &n.Title, &n.Message, &n.CreatedAt, &readBy); err != nil {
			return nil, nil, storeErr("scan notification", err)
		}
		n.ReadBy = []string(readBy)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr("iterate notifications", err)
	}
	return notifications, pagination(total, page, perPage), nil
}

// MarkRead records a read receipt; marking twice is a no-op
func (r *Repository) MarkRead(ctx context.Context, notificationID, memberID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.notification_reads (notification_id, member_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		notificationID, memberID)
	if err != nil {
		return storeErr("mark notification read", err)
	}
	return nil
}

// GetPreference retrieves the member's delivery preference for the account,
// or nil when none has been stored yet
func (r *Repository) GetPreference(ctx context.Context, memberID, accountID string) (*models.NotificationPreference, error) {
	pref := &models.NotificationPreference{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, member_id, account_id, email_enabled, updated_at
		FROM spherre.notification_preferences
		WHERE member_id = $1 AND account_id = $2`, memberID, accountID).
		Scan(&pref.ID, &pref.MemberID, &pref.AccountID, &pref.EmailEnabled, &pref.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find notification preference", err)
	}
	return pref, nil
}

// SavePreference inserts or updates the member's delivery preference
func (r *Repository) SavePreference(ctx context.Context, pref *models.NotificationPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spherre.notification_preferences (id, member_id, account_id, email_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (member_id, account_id) DO UPDATE SET email_enabled = EXCLUDED.email_enabled, updated_at = EXCLUDED.updated_at`,
		pref.ID, pref.MemberID, pref.AccountID, pref.EmailEnabled, pref.UpdatedAt)
	if err != nil {
		return storeErr("save notification preference", err)
	}
	return nil
}
