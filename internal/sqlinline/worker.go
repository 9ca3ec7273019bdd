package sqlinline

const QWorkerClaimStory = `--sql 7c1f2a9e-5b3d-4f08-9a61-2e4d8c0b7f13
with next_story as (
    select id
    from stories
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update stories
    set status = 'processing', updated_at = now()
    where id in (select id from next_story)
    returning id, user_id, title, objective, language, child_ids, prompt_json
)
select * from updated;
`

const QCompleteStory = `--sql 3a8e6d41-92c7-4b5a-8f0e-6d1c3b9a2e57
update stories
set status = 'completed',
    title = $2,
    content = $3,
    audio_key = $4,
    updated_at = now()
where id = $1
  and status not in ('completed', 'error');
`

const QFailStory = `--sql b4d92f60-1e7a-4c38-a5b9-0f8e2d6c4a71
update stories
set status = 'error',
    error_message = $2,
    updated_at = now()
where id = $1
  and status not in ('completed', 'error');
`

const QSetStoryWorkflow = `--sql e2c50b8a-7d94-4e16-b3f2-9a6d0c1e8b45
update stories
set workflow_id = $2,
    updated_at = now()
where id = $1;
`
