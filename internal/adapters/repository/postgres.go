package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/internal/domain/ledger"
	"github.com/profboard/profboard/internal/domain/model"
	"github.com/profboard/profboard/internal/domain/search"
	"github.com/profboard/profboard/internal/domain/types"
	"github.com/profboard/profboard/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultMinConns = 1
	defaultMaxConns = 10

	// Postgres error code for foreign_key_violation. A vote against an
	// unknown target trips the FK and maps to ErrNotFound.
	fkViolationCode = "23503"
)

// Postgres implements Store on a pgx connection pool with raw SQL.
type Postgres struct {
	pool     *pgxpool.Pool
	minConns int32
	maxConns int32
}

// NewPostgres connects a pooled store using the given DSN.
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	p := &Postgres{
		minConns: defaultMinConns,
		maxConns: defaultMaxConns,
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MinConns = p.minConns
	cfg.MaxConns = p.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// track times one storage operation for metrics.
func track(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		metrics.RecordStoreQuery(op, float64(time.Since(start).Microseconds())/1000.0)
		if err != nil && !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreError(op)
		}
	}
}

// mapWriteErr translates FK violations on vote/link writes to ErrNotFound.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolationCode {
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

// Rating and karma aggregates are owned by storage: mean over all ratings,
// sum over all karma votes, 0 when nobody voted.
const (
	teacherRatingExpr = `COALESCE((SELECT AVG(tr2.user_rating)::float8
		FROM public.teacher_rating tr2 WHERE tr2.teacher_id = t.id), 0)`
	commentKarmaExpr = `COALESCE((SELECT SUM(ck2.user_karma)
		FROM public.comment_karma ck2 WHERE ck2.comment_id = c.id), 0)::bigint`
)

func (p *Postgres) Catalog(ctx context.Context) (out []search.CatalogEntry, err error) {
	done := track("catalog")
	defer func() { done(err) }()

	rows, err := p.pool.Query(ctx, `SELECT id, name FROM public.teacher;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e search.CatalogEntry
		if err = rows.Scan(&e.ID, &e.Title); err != nil {
			return nil, err
		}
		e.Kind = types.KindTeacher
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.pool.Query(ctx, `SELECT id, title FROM public.subject;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e search.CatalogEntry
		if err = rows.Scan(&e.ID, &e.Title); err != nil {
			return nil, err
		}
		e.Kind = types.KindSubject
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Teacher(ctx context.Context, id, viewerID int64) (header assemble.TeacherRow, summaries []assemble.SummaryRow, comments []assemble.CommentRow, err error) {
	done := track("teacher")
	defer func() { done(err) }()

	err = p.pool.QueryRow(ctx, `
		SELECT t.id, t.name, `+teacherRatingExpr+` AS rating,
		       COALESCE(tr.user_rating, 0) AS user_rating
		FROM public.teacher t
		LEFT JOIN public.teacher_rating tr
		    ON tr.teacher_id = t.id AND tr.isu = $2
		WHERE t.id = $1;`, id, viewerID,
	).Scan(&header.ID, &header.Name, &header.Rating, &header.UserRating)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: teacher %d", ErrNotFound, id)
		return
	}
	if err != nil {
		return
	}

	summaries, err = p.summaries(ctx, []int64{id})
	if err != nil {
		return
	}
	comments, err = p.comments(ctx, []int64{id}, viewerID)
	return
}

func (p *Postgres) Subject(ctx context.Context, id, viewerID int64) (header assemble.SubjectRow, teachers []assemble.TeacherRow, summaries []assemble.SummaryRow, comments []assemble.CommentRow, err error) {
	done := track("subject")
	defer func() { done(err) }()

	err = p.pool.QueryRow(ctx,
		`SELECT id, title FROM public.subject WHERE id = $1;`, id,
	).Scan(&header.ID, &header.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: subject %d", ErrNotFound, id)
		return
	}
	if err != nil {
		return
	}

	rows, err := p.pool.Query(ctx, `
		SELECT t.id, t.name, `+teacherRatingExpr+` AS rating,
		       COALESCE(tr.user_rating, 0) AS user_rating
		FROM public.teacher t
		JOIN public.relationst r ON r.teacher_id = t.id
		LEFT JOIN public.teacher_rating tr
		    ON tr.teacher_id = t.id AND tr.isu = $2
		WHERE r.subject_id = $1
		ORDER BY t.id;`, id, viewerID)
	if err != nil {
		return
	}
	defer rows.Close()
	var teacherIDs []int64
	for rows.Next() {
		var t assemble.TeacherRow
		if err = rows.Scan(&t.ID, &t.Name, &t.Rating, &t.UserRating); err != nil {
			return
		}
		teachers = append(teachers, t)
		teacherIDs = append(teacherIDs, t.ID)
	}
	if err = rows.Err(); err != nil {
		return
	}
	if len(teacherIDs) == 0 {
		return
	}

	summaries, err = p.summaries(ctx, teacherIDs)
	if err != nil {
		return
	}
	comments, err = p.comments(ctx, teacherIDs, viewerID)
	return
}

func (p *Postgres) summaries(ctx context.Context, teacherIDs []int64) ([]assemble.SummaryRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT teacher_id, title, value
		FROM public.summary
		WHERE teacher_id = ANY($1)
		ORDER BY id;`, teacherIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []assemble.SummaryRow
	for rows.Next() {
		var s assemble.SummaryRow
		if err := rows.Scan(&s.TeacherID, &s.Title, &s.Value); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) comments(ctx context.Context, teacherIDs []int64, viewerID int64) ([]assemble.CommentRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.id, c.teacher_id, c.date, c.text,
		       s.title  AS source_title,
		       COALESCE(s.link, '') AS source_link,
		       subj.title AS subject_title,
		       `+commentKarmaExpr+` AS karma,
		       COALESCE(ck.user_karma, 0) AS user_karma
		FROM public.comment c
		JOIN public.source  s    ON c.source_id = s.id
		JOIN public.subject subj ON c.subject_id = subj.id
		LEFT JOIN public.comment_karma ck
		    ON ck.comment_id = c.id AND ck.isu = $2
		WHERE c.teacher_id = ANY($1)
		ORDER BY c.id;`, teacherIDs, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []assemble.CommentRow
	for rows.Next() {
		var c assemble.CommentRow
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.Date, &c.Text,
			&c.SourceTitle, &c.SourceLink, &c.SubjectTitle, &c.Karma, &c.UserKarma); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertTeacherRating(ctx context.Context, viewerID, teacherID int64, rating int) (res ledger.RatingResult, err error) {
	done := track("upsert_rating")
	defer func() { done(err) }()

	_, err = p.pool.Exec(ctx, `
		INSERT INTO public.teacher_rating (isu, teacher_id, user_rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (isu, teacher_id)
		DO UPDATE SET user_rating = EXCLUDED.user_rating;`,
		viewerID, teacherID, rating)
	if err != nil {
		err = mapWriteErr(err)
		return
	}

	// The reselect is a separate statement: a concurrent vote by another
	// viewer may already be visible in the returned aggregate.
	err = p.pool.QueryRow(ctx, `
		SELECT `+teacherRatingExpr+` AS rating,
		       COALESCE(tr.user_rating, 0) AS user_rating
		FROM public.teacher t
		LEFT JOIN public.teacher_rating tr
		    ON tr.teacher_id = t.id AND tr.isu = $1
		WHERE t.id = $2;`, viewerID, teacherID,
	).Scan(&res.Rating, &res.UserRating)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: teacher %d", ErrNotFound, teacherID)
	}
	return
}

func (p *Postgres) UpsertCommentKarma(ctx context.Context, viewerID, commentID int64, karma int) (res ledger.KarmaResult, err error) {
	done := track("upsert_karma")
	defer func() { done(err) }()

	_, err = p.pool.Exec(ctx, `
		INSERT INTO public.comment_karma (isu, comment_id, user_karma)
		VALUES ($1, $2, $3)
		ON CONFLICT (isu, comment_id)
		DO UPDATE SET user_karma = EXCLUDED.user_karma;`,
		viewerID, commentID, karma)
	if err != nil {
		err = mapWriteErr(err)
		return
	}

	err = p.pool.QueryRow(ctx, `
		SELECT `+commentKarmaExpr+` AS karma,
		       COALESCE(ck.user_karma, 0) AS user_karma
		FROM public.comment c
		LEFT JOIN public.comment_karma ck
		    ON ck.comment_id = c.id AND ck.isu = $1
		WHERE c.id = $2;`, viewerID, commentID,
	).Scan(&res.Karma, &res.UserKarma)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: comment %d", ErrNotFound, commentID)
	}
	return
}

func (p *Postgres) Moderators(ctx context.Context) (out map[int64]struct{}, err error) {
	done := track("moderators")
	defer func() { done(err) }()

	rows, err := p.pool.Query(ctx,
		`SELECT isu FROM public.moderator WHERE access = TRUE;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out = make(map[int64]struct{})
	for rows.Next() {
		var isu int64
		if err = rows.Scan(&isu); err != nil {
			return nil, err
		}
		out[isu] = struct{}{}
	}
	return out, rows.Err()
}

func (p *Postgres) InsertSuggestion(ctx context.Context, s model.Suggestion) (id int64, err error) {
	done := track("insert_suggestion")
	defer func() { done(err) }()

	var isu any
	if s.ViewerID != 0 {
		isu = s.ViewerID
	}
	subsIDs, subsTitles := joinSubs(s.Subs)
	err = p.pool.QueryRow(ctx, `
		INSERT INTO public.suggestion (
		    status, user_isu, text, teacher_id, teacher_title,
		    subject_id, subject_title, subs_id, subs_title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;`,
		model.SuggestionCheck, isu, s.Text,
		s.Teacher.ID, s.Teacher.Title,
		s.Subject.ID, s.Subject.Title,
		subsIDs, subsTitles, s.CreatedAt,
	).Scan(&id)
	return
}

const suggestionColumns = `id, status, COALESCE(user_isu, 0), text,
	teacher_id, teacher_title, subject_id, subject_title,
	subs_id, subs_title, COALESCE(created_at, '')`

func scanSuggestion(row pgx.Row) (model.Suggestion, error) {
	var s model.Suggestion
	var subsIDs, subsTitles string
	err := row.Scan(&s.ID, &s.Status, &s.ViewerID, &s.Text,
		&s.Teacher.ID, &s.Teacher.Title, &s.Subject.ID, &s.Subject.Title,
		&subsIDs, &subsTitles, &s.CreatedAt)
	if err != nil {
		return model.Suggestion{}, err
	}
	s.Subs = splitSubs(subsIDs, subsTitles)
	return s, nil
}

func (p *Postgres) Suggestions(ctx context.Context, statuses ...model.SuggestionStatus) (out []model.Suggestion, err error) {
	done := track("suggestions")
	defer func() { done(err) }()

	query := `SELECT ` + suggestionColumns + ` FROM public.suggestion ORDER BY id;`
	args := []any{}
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query = `SELECT ` + suggestionColumns + ` FROM public.suggestion
			WHERE status = ANY($1) ORDER BY id;`
		args = append(args, names)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, scanErr := scanSuggestion(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) Suggestion(ctx context.Context, id int64) (s model.Suggestion, err error) {
	done := track("suggestion")
	defer func() { done(err) }()

	s, err = scanSuggestion(p.pool.QueryRow(ctx,
		`SELECT `+suggestionColumns+` FROM public.suggestion WHERE id = $1;`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	return
}

func (p *Postgres) UpdateSuggestionStatus(ctx context.Context, moderatorID, id int64, status model.SuggestionStatus) (err error) {
	done := track("update_suggestion")
	defer func() { done(err) }()

	tag, err := p.pool.Exec(ctx, `
		UPDATE public.suggestion
		SET status = $1, moderator_isu = $2
		WHERE id = $3;`, status, moderatorID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: suggestion %d", ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) UpsertTeacher(ctx context.Context, id *int64, name string) (out int64, err error) {
	done := track("upsert_teacher")
	defer func() { done(err) }()

	if id == nil {
		err = p.pool.QueryRow(ctx,
			`INSERT INTO public.teacher (name) VALUES ($1) RETURNING id;`, name,
		).Scan(&out)
		return
	}
	err = p.pool.QueryRow(ctx,
		`UPDATE public.teacher SET name = $2 WHERE id = $1 RETURNING id;`, *id, name,
	).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: teacher %d", ErrNotFound, *id)
	}
	return
}

func (p *Postgres) UpsertSubject(ctx context.Context, id *int64, title string) (out int64, err error) {
	done := track("upsert_subject")
	defer func() { done(err) }()

	if id == nil {
		err = p.pool.QueryRow(ctx,
			`INSERT INTO public.subject (title) VALUES ($1) RETURNING id;`, title,
		).Scan(&out)
		return
	}
	err = p.pool.QueryRow(ctx,
		`UPDATE public.subject SET title = $2 WHERE id = $1 RETURNING id;`, *id, title,
	).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		err = fmt.Errorf("%w: subject %d", ErrNotFound, *id)
	}
	return
}

func (p *Postgres) LinkTeacherSubject(ctx context.Context, teacherID, subjectID int64) (err error) {
	done := track("link")
	defer func() { done(err) }()

	_, err = p.pool.Exec(ctx, `
		INSERT INTO public.relationst (teacher_id, subject_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING;`, teacherID, subjectID)
	return mapWriteErr(err)
}

func (p *Postgres) InsertComment(ctx context.Context, c NewComment) (id int64, err error) {
	done := track("insert_comment")
	defer func() { done(err) }()

	var sourceID int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO public.source (title, link)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (title)
		DO UPDATE SET link = COALESCE(EXCLUDED.link, source.link)
		RETURNING id;`, c.SourceTitle, c.SourceLink,
	).Scan(&sourceID)
	if err != nil {
		return 0, err
	}

	err = p.pool.QueryRow(ctx, `
		INSERT INTO public.comment (teacher_id, subject_id, source_id, date, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;`,
		c.TeacherID, c.SubjectID, sourceID, c.Date, c.Text,
	).Scan(&id)
	if err != nil {
		err = mapWriteErr(err)
	}
	return
}

// joinSubs encodes alternative subject refs the way the suggestion table
// stores them: two ';'-joined columns, empty slot for a missing id.
func joinSubs(subs []model.SuggestionRef) (ids, titles string) {
	if len(subs) == 0 {
		return "", ""
	}
	idParts := make([]string, len(subs))
	titleParts := make([]string, len(subs))
	for i, s := range subs {
		if s.ID != nil {
			idParts[i] = strconv.FormatInt(*s.ID, 10)
		}
		titleParts[i] = strings.ReplaceAll(s.Title, ";", "")
	}
	return strings.Join(idParts, ";"), strings.Join(titleParts, ";")
}

func splitSubs(ids, titles string) []model.SuggestionRef {
	if ids == "" && titles == "" {
		return nil
	}
	idParts := strings.Split(ids, ";")
	titleParts := strings.Split(titles, ";")
	out := make([]model.SuggestionRef, 0, len(titleParts))
	for i, title := range titleParts {
		ref := model.SuggestionRef{Title: title}
		if i < len(idParts) && idParts[i] != "" {
			if id, err := strconv.ParseInt(idParts[i], 10, 64); err == nil {
				ref.ID = &id
			}
		}
		out = append(out, ref)
	}
	return out
}
