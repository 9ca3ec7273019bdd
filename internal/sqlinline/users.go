package sqlinline

const QUpdateUserPlanByID = `--sql 6d2e9a15-3f7c-4b48-a0d6-8b1f4e7c2a93
update users
set plan = $2,
    quota_daily = case when $3 > 0 then $3 else quota_daily end,
    updated_at = now()
where id = $1
returning id, email, plan, quota_daily;
`

const QUpdateUserPlanByEmail = `--sql 1b8f4c72-9e0a-4d35-b6c8-5a3d7f2e9b04
update users
set plan = $2,
    quota_daily = case when $3 > 0 then $3 else quota_daily end,
    updated_at = now()
where lower(email) = lower($1)
returning id, email, plan, quota_daily;
`
