package sqlinline

const QEnsureObjectsTable = `--sql 3c2f9a41-7d6e-4b0a-9f1c-2e8d5b6a7c10
create table if not exists objects (
    path text primary key,
    data bytea not null,
    message text not null default '',
    updated_at timestamptz not null default now()
);
`

const QFetchObject = `--sql 8a1d4e2b-5c3f-4e6a-8b7d-9f0e1a2b3c4d
select data
from objects
where path = $1::text;
`

const QCommitObject = `--sql b6e0f3a2-1c4d-4f8e-9a7b-5d2c1e0f9a8b
insert into objects(path, data, message, updated_at)
values ($1::text, $2::bytea, $3::text, now())
on conflict (path) do update
set data = excluded.data,
    message = excluded.message,
    updated_at = now();
`

const QDeleteObjects = `--sql e4c7b1d9-2a6f-4d3e-8c5b-7a9f0e1d2c3b
delete from objects
where path = any($1::text[]);
`
