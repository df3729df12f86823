package sqlinline

const QUpsertPreference = `--sql 3f6a9d12-84be-4c1f-9a53-1d2b7c0e8f44
insert into preferences(key, value, updated_at)
values ($1, $2, now())
on conflict (key) do update
set value = excluded.value,
    updated_at = now()
`

const QSelectPreference = `--sql b81c4e77-2a09-4f6d-8c3e-55aa96d1f203
select value
from preferences
where key = $1
`
