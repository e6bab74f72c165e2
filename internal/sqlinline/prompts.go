package sqlinline

const promptColumns = `
  id::text,
  analysis_id::text,
  template_id,
  variation,
  title,
  description,
  tags,
  confidence,
  elements,
  category,
  duration,
  is_selected,
  is_user_edited,
  created_at`

// QInsertPrompts inserts a whole batch in one statement from a JSON array.
const QInsertPrompts = `--sql d3277635-5184-43f5-a58c-172bed686f3b
insert into video_prompts (
  id, analysis_id, template_id, variation, title, description, tags,
  confidence, elements, category, duration
)
select
  p.id,
  $1::uuid,
  p.template_id,
  p.variation,
  p.title,
  p.description,
  coalesce(p.tags, '[]'::jsonb),
  p.confidence,
  coalesce(p.elements, '[]'::jsonb),
  p.category,
  coalesce(p.duration, '')
from jsonb_to_recordset($2::jsonb) as p(
  id uuid,
  template_id text,
  variation integer,
  title text,
  description text,
  tags jsonb,
  confidence integer,
  elements jsonb,
  category text,
  duration text
);
`

const QSelectPromptsByAnalysis = `--sql 331b79eb-6153-4da7-b2c8-e2b77f782b5e
select` + promptColumns + `
from video_prompts
where analysis_id = $1::uuid
order by confidence desc, created_at asc, id asc;
`

const QSelectPrompt = `--sql 42ce806b-e3b9-415f-b59a-d383081c3ba9
select` + promptColumns + `
from video_prompts
where id = $1::uuid;
`

// QSelectPromptExclusive flips the selection for a whole analysis in one
// statement so exactly one prompt ends up selected.
const QSelectPromptExclusive = `--sql 6a51b4fd-6422-4c2c-9f49-572b28063f5b
update video_prompts
set is_selected = (id = $2::uuid)
where analysis_id = $1::uuid
  and exists (
    select 1 from video_prompts
    where id = $2::uuid and analysis_id = $1::uuid
  );
`

const QUpdatePromptText = `--sql 8fa38ff4-57fd-4d09-a4cd-0072bbe7a2f5
update video_prompts
set description = $2::text,
    is_user_edited = true
where id = $1::uuid
returning` + promptColumns + `;
`
