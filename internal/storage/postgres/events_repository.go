package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/intheknowyyc/server/internal/domain/events"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, organization_name, event_name, event_description, event_date, is_event_free, event_cost,
       event_link, event_type, location, industry, speakers, event_image, status, user_id, created_at, updated_at`

// EventRepository implements events.Repository.
type EventRepository struct {
	db DB
	tx pgx.Tx
}

func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ events.Repository = (*EventRepository)(nil)

// List runs the page query and the count query inside one REPEATABLE READ,
// read-only transaction so the total matches the page.
func (r *EventRepository) List(ctx context.Context, query events.Query) (_ []events.Event, _ int64, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())

	where, args := eventWhere(query)
	countSQL := `SELECT COUNT(*) FROM events` + where
	pageSQL := `SELECT ` + eventColumns + ` FROM events` + where + eventOrder(query) +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	pageArgs := append(append([]any{}, args...), query.Limit(), query.Offset())

	var (
		items []events.Event
		total int64
	)
	run := func(q querier) error {
		if err := q.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		rows, err := q.Query(ctx, pageSQL, pageArgs...)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		defer rows.Close()

		items = make([]events.Event, 0, query.Limit())
		for rows.Next() {
			event, err := scanEvent(rows)
			if err != nil {
				return fmt.Errorf("scan event: %w", err)
			}
			items = append(items, *event)
		}
		return rows.Err()
	}

	if r.tx != nil {
		err = run(r.tx)
	} else {
		err = inTx(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
			return run(tx)
		})
	}
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// eventWhere builds the WHERE clause shared by the page and count queries.
// Only placeholders reach the SQL text; values travel in args.
func eventWhere(q events.Query) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if q.StartDate != nil {
		add("event_date >= $%d", *q.StartDate)
	}
	if q.EndDate != nil {
		add("event_date <= $%d", *q.EndDate)
	}
	if q.EventType != "" {
		add("event_type = $%d", q.EventType)
	}
	if q.Industry != "" {
		add("industry = $%d", q.Industry)
	}
	if q.FreeEvent != nil {
		add("is_event_free = $%d", *q.FreeEvent)
	}
	if q.Location != "" {
		add("location = $%d", q.Location)
	}
	if q.OrganizationName != "" {
		add("organization_name = $%d", q.OrganizationName)
	}
	if q.SearchPattern != "" {
		args = append(args, q.SearchPattern)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			`(LOWER(event_name) LIKE $%d ESCAPE '\' OR LOWER(organization_name) LIKE $%d ESCAPE '\')`, n, n))
	}
	if q.Status != nil {
		add("status = $%d", string(*q.Status))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// eventOrder trusts q.SortColumn: events.Resolve only produces allow-listed
// columns.
func eventOrder(q events.Query) string {
	column := q.SortColumn
	if column == "" {
		column = events.DefaultSortColumn
	}
	dir := "ASC"
	if q.SortDescending {
		dir = "DESC"
	}
	return " ORDER BY " + column + " " + dir + ", id " + dir
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("get_event", start, ignoreEventNotFound(err)) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, event events.Event) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("create_event", start, err) }(time.Now())

	speakers, err := json.Marshal(speakersOrEmpty(event.Speakers))
	if err != nil {
		return nil, fmt.Errorf("encode speakers: %w", err)
	}

	row := pick(r.db, r.tx).QueryRow(ctx, `
INSERT INTO events (id, organization_name, event_name, event_description, event_date, is_event_free, event_cost,
                    event_link, event_type, location, industry, speakers, event_image, status, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING `+eventColumns,
		event.ID, event.OrganizationName, event.EventName, event.EventDescription, event.EventDate,
		event.FreeEvent, event.EventCost, event.EventLink, event.EventType, event.Location,
		nullable(event.Industry), speakers, nullable(event.EventImage), string(event.Status),
		nullable(event.UserID), event.CreatedAt, event.UpdatedAt,
	)
	created, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return created, nil
}

func (r *EventRepository) Update(ctx context.Context, event events.Event) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("update_event", start, ignoreEventNotFound(err)) }(time.Now())

	speakers, err := json.Marshal(speakersOrEmpty(event.Speakers))
	if err != nil {
		return nil, fmt.Errorf("encode speakers: %w", err)
	}

	row := pick(r.db, r.tx).QueryRow(ctx, `
UPDATE events
   SET organization_name = $2, event_name = $3, event_description = $4, event_date = $5, is_event_free = $6,
       event_cost = $7, event_link = $8, event_type = $9, location = $10, industry = $11, speakers = $12,
       event_image = $13, updated_at = $14
 WHERE id = $1
RETURNING `+eventColumns,
		event.ID, event.OrganizationName, event.EventName, event.EventDescription, event.EventDate,
		event.FreeEvent, event.EventCost, event.EventLink, event.EventType, event.Location,
		nullable(event.Industry), speakers, nullable(event.EventImage), event.UpdatedAt,
	)
	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status events.Status, updatedAt time.Time) (_ *events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("update_event_status", start, ignoreEventNotFound(err)) }(time.Now())

	row := pick(r.db, r.tx).QueryRow(ctx,
		`UPDATE events SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+eventColumns,
		id, string(status), updatedAt,
	)
	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("update event status: %w", err)
	}
	return updated, nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { metrics.RecordQuery("delete_event", start, ignoreEventNotFound(err)) }(time.Now())

	tag, err := pick(r.db, r.tx).Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		event      events.Event
		industry   *string
		eventImage *string
		userID     *string
		speakers   []byte
		status     string
	)
	if err := row.Scan(
		&event.ID, &event.OrganizationName, &event.EventName, &event.EventDescription, &event.EventDate,
		&event.FreeEvent, &event.EventCost, &event.EventLink, &event.EventType, &event.Location,
		&industry, &speakers, &eventImage, &status, &userID, &event.CreatedAt, &event.UpdatedAt,
	); err != nil {
		return nil, err
	}

	event.Industry = deref(industry)
	event.EventImage = deref(eventImage)
	event.UserID = deref(userID)
	event.Status = events.Status(status)
	event.Speakers = []events.Speaker{}
	if len(speakers) > 0 {
		if err := json.Unmarshal(speakers, &event.Speakers); err != nil {
			return nil, fmt.Errorf("decode speakers: %w", err)
		}
	}
	return &event, nil
}

func speakersOrEmpty(speakers []events.Speaker) []events.Speaker {
	if speakers == nil {
		return []events.Speaker{}
	}
	return speakers
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func ignoreEventNotFound(err error) error {
	if errors.Is(err, events.ErrNotFound) {
		return nil
	}
	return err
}
