package sqlinline

// Revoked keys keep their row so the rotation history in properties survives.
const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
  and coalesce((properties->>'revoked')::boolean, false) = false
limit 1;
`

const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties - 'revoked' - 'revoked_at' || excluded.properties,
    updated_at = now();
`

const QRevokeIntegrationToken = `--sql 3c51e7a4-2b9f-4d0e-a6c8-5f17d2e94b30
update integration_tokens
set properties = properties || jsonb_build_object('revoked', true, 'revoked_at', $2::text),
    updated_at = now()
where provider = $1::text;
`
