// Copyright (c) 2025 The peereval developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package evaldb

// tokens is keyed by the credential string itself.
const tokenTableSchema = `
create table if not exists tokens (
	token text primary key,
	evaluator_id text not null,
	target_id text not null,
	questions text not null,
	created_at text not null,
	expires_at text not null,
	status text not null default 'pending',
	is_used integer not null default 0,
	used_at text,
	ip_address text,
	user_agent text
);

CREATE INDEX if not exists tokensEvaluatorIndex on tokens(evaluator_id);
CREATE INDEX if not exists tokensStatusIndex on tokens(status);
`

// submissions is append-only; one row per (token, question).
const submissionTableSchema = `
create table if not exists submissions (
	id integer primary key autoincrement,
	token text not null references tokens(token),
	evaluator_id text not null,
	target_id text not null,
	question_id text not null,
	score integer not null,
	comment text,
	submitted_at text not null,
	ip_address text,
	user_agent text
);

CREATE INDEX if not exists submissionsTokenIndex on submissions(token);
CREATE INDEX if not exists submissionsEvaluatorIndex on submissions(evaluator_id);
CREATE INDEX if not exists submissionsTargetIndex on submissions(target_id);
`

// submission_logs is the append-only audit trail. Never mutated.
const logTableSchema = `
create table if not exists submission_logs (
	id integer primary key autoincrement,
	token text,
	action text not null,
	details text,
	ip_address text,
	user_agent text,
	timestamp text not null
);
`

const studentTableSchema = `
create table if not exists students (
	student_id text primary key,
	student_name text not null,
	email text not null,
	created_at text not null
);
`
