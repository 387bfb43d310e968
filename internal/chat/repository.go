package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type Repository interface {
	SaveChat(ctx context.Context, record *Record) error
	GetByNumber(ctx context.Context, chatNumber int) (*Record, error)
	History(ctx context.Context, sessionID string, limit int) ([]HistoryTurn, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

// SaveChat persists the chat row, its symptoms and the user/assistant message
// pair in one transaction. record.ChatNumber is filled from the database.
func (r *postgresRepo) SaveChat(ctx context.Context, record *Record) error {
	assessmentJSON, err := json.Marshal(record.Assessment)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	conditionsJSON, _ := json.Marshal(record.Patient.ChronicConditions)
	medicationsJSON, _ := json.Marshal(record.Patient.CurrentMedications)
	allergiesJSON, _ := json.Marshal(record.Patient.Allergies)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chats (chat_id, session_id, message, locale, recorded_at,
			age, biological_sex, chronic_conditions, current_medications, allergies, assessment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING chat_number
	`
	err = tx.QueryRowContext(ctx, query,
		record.ChatID, record.SessionID, record.Message, record.Locale, record.RecordedAt,
		record.Patient.Age, nullableString(record.Patient.BiologicalSex),
		conditionsJSON, medicationsJSON, allergiesJSON, assessmentJSON,
	).Scan(&record.ChatNumber)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	for _, symptom := range record.Symptoms {
		detailJSON, err := json.Marshal(symptom)
		if err != nil {
			return fmt.Errorf("marshal symptom: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO symptoms (chat_number, name, severity, recorded_at, detail)
			VALUES ($1, $2, $3, $4, $5)
		`, record.ChatNumber, symptom.Name, symptom.Severity, record.RecordedAt, detailJSON)
		if err != nil {
			return fmt.Errorf("insert symptom: %w", err)
		}
	}

	messages := []struct {
		role, content string
	}{
		{"user", record.Message},
		{"assistant", record.Assessment.AssistantMessage},
	}
	for _, m := range messages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_messages (chat_number, session_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, record.ChatNumber, record.SessionID, m.role, m.content, record.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}

	return tx.Commit()
}

func (r *postgresRepo) GetByNumber(ctx context.Context, chatNumber int) (*Record, error) {
	query := `
		SELECT chat_number, chat_id, session_id, message, locale, recorded_at,
			age, biological_sex, chronic_conditions, current_medications, allergies, assessment
		FROM chats WHERE chat_number = $1
	`
	row := r.db.QueryRowContext(ctx, query, chatNumber)

	var record Record
	var age sql.NullInt64
	var sex sql.NullString
	var conditionsJSON, medicationsJSON, allergiesJSON, assessmentJSON []byte

	err := row.Scan(
		&record.ChatNumber, &record.ChatID, &record.SessionID, &record.Message,
		&record.Locale, &record.RecordedAt,
		&age, &sex, &conditionsJSON, &medicationsJSON, &allergiesJSON, &assessmentJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat %d not found", chatNumber)
		}
		return nil, err
	}

	if age.Valid {
		v := int(age.Int64)
		record.Patient.Age = &v
	}
	record.Patient.BiologicalSex = sex.String
	unmarshalOrEmpty(conditionsJSON, &record.Patient.ChronicConditions)
	unmarshalOrEmpty(medicationsJSON, &record.Patient.CurrentMedications)
	unmarshalOrEmpty(allergiesJSON, &record.Patient.Allergies)
	if len(assessmentJSON) > 0 {
		if err := json.Unmarshal(assessmentJSON, &record.Assessment); err != nil {
			return nil, fmt.Errorf("unmarshal assessment: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT detail FROM symptoms WHERE chat_number = $1 ORDER BY id`, chatNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var detailJSON []byte
		if err := rows.Scan(&detailJSON); err != nil {
			return nil, err
		}
		var symptom SymptomInput
		if err := json.Unmarshal(detailJSON, &symptom); err != nil {
			return nil, fmt.Errorf("unmarshal symptom: %w", err)
		}
		record.Symptoms = append(record.Symptoms, symptom)
	}
	return &record, rows.Err()
}

// History returns the most recent turns for a session, oldest first. A turn is
// a user message paired with the assistant reply that followed it.
func (r *postgresRepo) History(ctx context.Context, sessionID string, limit int) ([]HistoryTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Two rows per turn: one user message and one assistant message.
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM chat_messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) AS recent ORDER BY id
	`, sessionID, limit*2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []HistoryTurn
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		switch role {
		case "user":
			turns = append(turns, HistoryTurn{UserMessage: content})
		case "assistant":
			if len(turns) == 0 {
				turns = append(turns, HistoryTurn{})
			}
			turns[len(turns)-1].AssistantMessage = content
		}
	}
	return turns, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unmarshalOrEmpty(data []byte, target *[]string) {
	if len(data) > 0 {
		_ = json.Unmarshal(data, target)
	}
}
