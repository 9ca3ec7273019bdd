package sqlinline

const QSelectIntegrationToken = `--sql 9f3b7e24-6a1d-4c80-b5e9-3d8f0a2c6b19
select token
from integration_tokens
where provider = $1;
`

const QUpsertIntegrationToken = `--sql 58a1c4f7-0b2e-4d96-8c3a-7e5b9d1f0a62
insert into integration_tokens (provider, token, properties, updated_at)
values ($1, $2, $3, now())
on conflict (provider)
do update set token = excluded.token,
              properties = excluded.properties,
              updated_at = now();
`
