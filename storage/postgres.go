package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizroom/domain"
	"quizroom/game"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (repo *PostgresRepo) Close() {
	repo.pool.Close()
}

func (repo *PostgresRepo) GetPool() *pgxpool.Pool {
	return repo.pool
}

func (repo *PostgresRepo) CreateRoom(ctx context.Context, code, createdBy string) error {
	_, err := repo.pool.Exec(ctx,
		"INSERT INTO rooms(room_code, created_by, status) VALUES($1, $2, 'waiting') ON CONFLICT (room_code) DO NOTHING",
		code, createdBy)
	return wrapDatabaseErr(err)
}

func (repo *PostgresRepo) UpdateRoomStatus(ctx context.Context, code, status string) error {
	_, err := repo.pool.Exec(ctx, "UPDATE rooms SET status = $1 WHERE room_code = $2", status, code)
	return wrapDatabaseErr(err)
}

func (repo *PostgresRepo) DeleteRoom(ctx context.Context, code string) error {
	_, err := repo.pool.Exec(ctx, "DELETE FROM rooms WHERE room_code = $1", code)
	return wrapDatabaseErr(err)
}

func (repo *PostgresRepo) AddToRoom(ctx context.Context, code, playerId string, isHost bool) error {
	tag, err := repo.pool.Exec(ctx,
		"INSERT INTO room_players(room_id, player_id, is_host) SELECT id, $2, $3 FROM rooms WHERE room_code = $1",
		code, playerId, isHost)
	if err != nil {
		return wrapDatabaseErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomRowNotFound
	}
	return nil
}

func (repo *PostgresRepo) GetCountByRoomCode(ctx context.Context, code string) (int, error) {
	var count int
	row := repo.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM room_players rp JOIN rooms r ON r.id = rp.room_id WHERE r.room_code = $1",
		code)
	if err := row.Scan(&count); err != nil {
		return 0, wrapDatabaseErr(err)
	}
	return count, nil
}

func (repo *PostgresRepo) GetRoomHost(ctx context.Context, code string) (string, error) {
	var playerId string
	row := repo.pool.QueryRow(ctx,
		"SELECT rp.player_id FROM room_players rp JOIN rooms r ON r.id = rp.room_id WHERE r.room_code = $1 AND rp.is_host",
		code)

	err := row.Scan(&playerId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrMembershipNotFound
		}
		return "", wrapDatabaseErr(err)
	}
	return playerId, nil
}

func (repo *PostgresRepo) UpdateHost(ctx context.Context, code, playerId string) error {
	tx, err := repo.pool.Begin(ctx)
	if err != nil {
		return wrapDatabaseErr(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"UPDATE room_players SET is_host = false WHERE room_id = (SELECT id FROM rooms WHERE room_code = $1)",
		code)
	if err != nil {
		return wrapDatabaseErr(err)
	}
	_, err = tx.Exec(ctx,
		"UPDATE room_players SET is_host = true WHERE room_id = (SELECT id FROM rooms WHERE room_code = $1) AND player_id = $2",
		code, playerId)
	if err != nil {
		return wrapDatabaseErr(err)
	}
	return wrapDatabaseErr(tx.Commit(ctx))
}

func (repo *PostgresRepo) RemoveByPlayerId(ctx context.Context, playerId string) error {
	_, err := repo.pool.Exec(ctx, "DELETE FROM room_players WHERE player_id = $1", playerId)
	return wrapDatabaseErr(err)
}

func (repo *PostgresRepo) SaveGameResult(ctx context.Context, code, playerId string, score int) error {
	_, err := repo.pool.Exec(ctx,
		"INSERT INTO game_results(room_code, player_id, score) VALUES($1, $2, $3)",
		code, playerId, score)
	return wrapDatabaseErr(err)
}

// GetRandomQuestions implements the game.QuestionSource interface
// against the questions table.
func (repo *PostgresRepo) GetRandomQuestions(ctx context.Context, count int) ([]game.Question, error) {
	rows, err := repo.pool.Query(ctx,
		"SELECT id, prompt, options, correct_option, COALESCE(media_ref, ''), time_limit_seconds FROM questions ORDER BY RANDOM() LIMIT $1",
		count)
	if err != nil {
		return nil, wrapDatabaseErr(err)
	}
	defer rows.Close()

	questions := make([]game.Question, 0, count)
	for rows.Next() {
		var (
			id int64
			q  game.Question
		)
		if err := rows.Scan(&id, &q.Prompt, &q.Options, &q.CorrectOption, &q.MediaRef, &q.TimeLimitSeconds); err != nil {
			return nil, wrapDatabaseErr(err)
		}
		q.Id = fmt.Sprintf("q-%d", id)
		questions = append(questions, q)
	}
	return questions, wrapDatabaseErr(rows.Err())
}

func wrapDatabaseErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
}
