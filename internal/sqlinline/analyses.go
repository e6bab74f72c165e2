package sqlinline

const QInsertAnalysis = `--sql 0c885066-c47c-4974-a9a2-ea56ff3c8213
insert into scene_analyses (
  id, image_path, doors, windows, decorations, furniture, plants, layout,
  suitability_score, recommendations
)
values (
  $1::uuid, $2::text, $3::jsonb, $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb,
  $9::integer, $10::jsonb
)
returning created_at;
`

const QSelectAnalysis = `--sql b5adb030-6383-40f4-8ed8-91f35927ceee
select
  id::text,
  image_path,
  doors,
  windows,
  decorations,
  furniture,
  plants,
  layout,
  suitability_score,
  recommendations,
  created_at
from scene_analyses
where id = $1::uuid;
`

const QDeleteAnalysis = `--sql f59671a9-3daf-4a89-8d29-e1501f126fbb
delete from scene_analyses
where id = $1::uuid;
`
