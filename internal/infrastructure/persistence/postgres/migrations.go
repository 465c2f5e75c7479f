package postgres

// GetMigrations returns all migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_content", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_progress", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_badges", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_challenges", UpSQL: migration005Up, DownSQL: migration005Down},
		{Version: 6, Name: "create_notifications", UpSQL: migration006Up, DownSQL: migration006Down},
		{Version: 7, Name: "create_quiz", UpSQL: migration007Up, DownSQL: migration007Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
	level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_total_points ON users(total_points DESC);
`

const migration001Down = `DROP TABLE IF EXISTS users;`

const migration002Up = `
CREATE TABLE IF NOT EXISTS content_items (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	content_type TEXT NOT NULL CHECK (content_type IN ('article', 'video', 'quiz', 'course')),
	points_reward INTEGER NOT NULL DEFAULT 0 CHECK (points_reward >= 0),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_content_items_active ON content_items(is_active) WHERE is_active;
`

const migration002Down = `DROP TABLE IF EXISTS content_items;`

const migration003Up = `
CREATE TABLE IF NOT EXISTS progress (
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content_id UUID NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'in_progress'
		CHECK (status IN ('not_started', 'in_progress', 'completed')),
	progress_percentage INTEGER NOT NULL DEFAULT 0
		CHECK (progress_percentage >= 0 AND progress_percentage <= 100),
	time_spent_seconds INTEGER NOT NULL DEFAULT 0 CHECK (time_spent_seconds >= 0),
	notes TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMP WITH TIME ZONE,
	last_accessed TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, content_id)
);

CREATE INDEX IF NOT EXISTS idx_progress_user_accessed ON progress(user_id, last_accessed DESC);
CREATE INDEX IF NOT EXISTS idx_progress_user_completed ON progress(user_id) WHERE completed_at IS NOT NULL;
`

const migration003Down = `DROP TABLE IF EXISTS progress;`

const migration004Up = `
CREATE TABLE IF NOT EXISTS badges (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	requirement_kind TEXT NOT NULL
		CHECK (requirement_kind IN ('points', 'content_complete', 'streak_days')),
	requirement_value INTEGER NOT NULL CHECK (requirement_value > 0),
	points_reward INTEGER NOT NULL DEFAULT 0 CHECK (points_reward >= 0),
	rarity TEXT NOT NULL DEFAULT 'common'
		CHECK (rarity IN ('common', 'uncommon', 'rare', 'epic', 'legendary')),
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS user_badges (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
	earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id, earned_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS badges;
`

const migration005Up = `
CREATE TABLE IF NOT EXISTS challenges (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	objective TEXT NOT NULL,
	target_value INTEGER NOT NULL CHECK (target_value > 0),
	points_reward INTEGER NOT NULL DEFAULT 0 CHECK (points_reward >= 0),
	badge_reward_id UUID REFERENCES badges(id),
	start_date TIMESTAMP WITH TIME ZONE NOT NULL,
	end_date TIMESTAMP WITH TIME ZONE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	CHECK (end_date IS NULL OR end_date > start_date)
);

CREATE TABLE IF NOT EXISTS user_challenges (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'active'
		CHECK (status IN ('active', 'completed', 'expired')),
	current_value INTEGER NOT NULL DEFAULT 0 CHECK (current_value >= 0),
	accepted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMP WITH TIME ZONE,
	UNIQUE (user_id, challenge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_challenges_user ON user_challenges(user_id, accepted_at DESC);
CREATE INDEX IF NOT EXISTS idx_user_challenges_active ON user_challenges(user_id) WHERE status = 'active';
`

const migration005Down = `
DROP TABLE IF EXISTS user_challenges;
DROP TABLE IF EXISTS challenges;
`

const migration006Up = `
CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type TEXT NOT NULL
		CHECK (type IN ('badge_granted', 'level_up', 'challenge_completed', 'streak_milestone', 'quiz_passed', 'content_completed')),
	title TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'sent', 'read', 'failed')),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	read_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
`

const migration006Down = `DROP TABLE IF EXISTS notifications;`

const migration007Up = `
CREATE TABLE IF NOT EXISTS quiz_questions (
	id UUID PRIMARY KEY,
	content_id UUID NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
	question TEXT NOT NULL,
	options JSONB NOT NULL DEFAULT '[]',
	correct_answer TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_questions_content ON quiz_questions(content_id);

CREATE TABLE IF NOT EXISTS quiz_answers (
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	question_id UUID NOT NULL REFERENCES quiz_questions(id) ON DELETE CASCADE,
	content_id UUID NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
	selected_answer TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL,
	answered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, question_id)
);

CREATE TABLE IF NOT EXISTS quiz_results (
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content_id UUID NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
	questions_answered INTEGER NOT NULL DEFAULT 0,
	questions_correct INTEGER NOT NULL DEFAULT 0,
	total_questions INTEGER NOT NULL DEFAULT 0,
	passed BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at TIMESTAMP WITH TIME ZONE,
	PRIMARY KEY (user_id, content_id)
);
`

const migration007Down = `
DROP TABLE IF EXISTS quiz_results;
DROP TABLE IF EXISTS quiz_answers;
DROP TABLE IF EXISTS quiz_questions;
`
