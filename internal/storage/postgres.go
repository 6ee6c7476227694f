package storage

import (
	"context"
	"errors"
	"fmt"
	"frecipe_service/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = "id, username, password_hash, nickname, phone, img, roles, created_at, updated_at"

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type PostgresStorage struct {
	*pgQuerier
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		pgQuerier: &pgQuerier{db: conn},
		db:        conn,
	}, nil
}

func (p *PostgresStorage) WithTx(ctx context.Context, fn func(q Querier) error) error {
	return p.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(&pgQuerier{db: tx})
	})
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

type pgQuerier struct {
	db dbtx
}

func (p *pgQuerier) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(id, username, password_hash, nickname, phone, img, roles)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING %s;`, usersTable, userColumns)

	created, err := scanUser(p.db.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Nickname, user.Phone, user.Img, user.Roles,
	))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return created, nil
}

func (p *pgQuerier) UserExists(ctx context.Context, username string) (bool, error) {
	const op = "storage.UserExists"

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE username=$1);", usersTable)

	if err := p.db.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (p *pgQuerier) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "storage.GetUserByUsername"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE username=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, username))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return user, nil
}

func (p *pgQuerier) LockUserByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "storage.LockUserByUsername"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE username=$1 FOR UPDATE;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, username))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return user, nil
}

func (p *pgQuerier) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ListUsers"

	users := []models.User{}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, username;", userColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return users, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return users, fmt.Errorf("%s: %w", op, err)
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return users, nil
}

func (p *pgQuerier) UpdateUserProfile(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.UpdateUserProfile"

	query := fmt.Sprintf(`UPDATE %s
	   SET nickname=$1, phone=$2, img=$3, updated_at=now()
	 WHERE id=$4
	RETURNING %s;`, usersTable, userColumns)

	updated, err := scanUser(p.db.QueryRow(ctx, query, user.Nickname, user.Phone, user.Img, user.ID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return updated, nil
}

func (p *pgQuerier) AssignRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error) {
	const op = "storage.AssignRole"

	query := fmt.Sprintf(`UPDATE %s
	   SET roles = CASE WHEN $1::text = ANY(roles) THEN roles ELSE array_append(roles, $1::text) END,
	       updated_at = now()
	 WHERE id=$2
	RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, role, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return user, nil
}

func (p *pgQuerier) RemoveRole(ctx context.Context, userID uuid.UUID, role string) (models.User, error) {
	const op = "storage.RemoveRole"

	query := fmt.Sprintf(`UPDATE %s SET roles = array_remove(roles, $1::text), updated_at = now()
	 WHERE id=$2
	RETURNING %s;`, usersTable, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, role, userID))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return user, nil
}

func (p *pgQuerier) CreateFridge(ctx context.Context, fridge models.Fridge) (models.Fridge, error) {
	const op = "storage.CreateFridge"

	query := fmt.Sprintf(`INSERT INTO %s(id, owner_id, name) VALUES ($1, $2, $3)
	RETURNING id, owner_id, name, created_at, updated_at;`, fridgesTable)

	created, err := scanFridge(p.db.QueryRow(ctx, query, fridge.ID, fridge.OwnerID, fridge.Name))
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, mapError(err))
	}
	created.Ingredients = []models.Ingredient{}

	return created, nil
}

func (p *pgQuerier) GetFridgeByUsername(ctx context.Context, username string) (models.Fridge, error) {
	const op = "storage.GetFridgeByUsername"

	query := fmt.Sprintf(`SELECT f.id, f.owner_id, f.name, f.created_at, f.updated_at
	FROM %s f JOIN %s u ON u.id = f.owner_id
	WHERE u.username=$1;`, fridgesTable, usersTable)

	fridge, err := scanFridge(p.db.QueryRow(ctx, query, username))
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	fridge.Ingredients, err = p.listIngredients(ctx, fridge.ID)
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, err)
	}

	return fridge, nil
}

func (p *pgQuerier) LockFridgeByUsername(ctx context.Context, username string) (models.Fridge, error) {
	const op = "storage.LockFridgeByUsername"

	query := fmt.Sprintf(`SELECT f.id, f.owner_id, f.name, f.created_at, f.updated_at
	FROM %s f JOIN %s u ON u.id = f.owner_id
	WHERE u.username=$1
	FOR UPDATE OF f;`, fridgesTable, usersTable)

	fridge, err := scanFridge(p.db.QueryRow(ctx, query, username))
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return fridge, nil
}

func (p *pgQuerier) RenameFridge(ctx context.Context, fridgeID uuid.UUID, name string) (models.Fridge, error) {
	const op = "storage.RenameFridge"

	query := fmt.Sprintf(`UPDATE %s SET name=$1, updated_at=now() WHERE id=$2
	RETURNING id, owner_id, name, created_at, updated_at;`, fridgesTable)

	fridge, err := scanFridge(p.db.QueryRow(ctx, query, name, fridgeID))
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	fridge.Ingredients, err = p.listIngredients(ctx, fridge.ID)
	if err != nil {
		return models.Fridge{}, fmt.Errorf("%s: %w", op, err)
	}

	return fridge, nil
}

func (p *pgQuerier) AddIngredient(ctx context.Context, ingredient models.Ingredient) (models.Ingredient, error) {
	const op = "storage.AddIngredient"

	query := fmt.Sprintf(`INSERT INTO %s(id, fridge_id, name, quantity, unit, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, fridge_id, name, quantity, unit, expires_at, created_at;`, ingredientsTable)

	created, err := scanIngredient(p.db.QueryRow(ctx, query,
		ingredient.ID, ingredient.FridgeID, ingredient.Name, ingredient.Quantity, ingredient.Unit, ingredient.ExpiresAt,
	))
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return created, nil
}

func (p *pgQuerier) listIngredients(ctx context.Context, fridgeID uuid.UUID) ([]models.Ingredient, error) {
	ingredients := []models.Ingredient{}
	query := fmt.Sprintf(`SELECT id, fridge_id, name, quantity, unit, expires_at, created_at
	FROM %s WHERE fridge_id=$1
	ORDER BY created_at, id;`, ingredientsTable)

	rows, err := p.db.Query(ctx, query, fridgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ingredient, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}

		ingredients = append(ingredients, ingredient)
	}

	return ingredients, rows.Err()
}

func scanUser(row scanner) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Nickname,
		&user.Phone,
		&user.Img,
		&user.Roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func scanFridge(row scanner) (models.Fridge, error) {
	var fridge models.Fridge

	err := row.Scan(&fridge.ID, &fridge.OwnerID, &fridge.Name, &fridge.CreatedAt, &fridge.UpdatedAt)

	return fridge, err
}

func scanIngredient(row scanner) (models.Ingredient, error) {
	var ingredient models.Ingredient

	err := row.Scan(
		&ingredient.ID,
		&ingredient.FridgeID,
		&ingredient.Name,
		&ingredient.Quantity,
		&ingredient.Unit,
		&ingredient.ExpiresAt,
		&ingredient.CreatedAt,
	)

	return ingredient, err
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}

	return err
}
