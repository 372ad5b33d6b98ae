package elasticsearch

// painless scripts run by the loader and the write operations. Every
// script reads its parameters from params; params.op names the script.
const (
	OP_INSERT_STUDY      = "insert-study"
	OP_MERGE_FILE        = "merge-file"
	OP_FILL_GAPS         = "fill-gaps"
	OP_ANNOTATION        = "update-annotation"
	OP_SNAPSHOT          = "update-annotation-snapshot"
	OP_STATS             = "update-stats"
	OP_DELETE_STATS      = "delete-stats"
	OP_CUSTOM_ANNOTATION = "custom-annotation"
	OP_DELETE_STUDY      = "delete-study"
)

// conditional create of the study entry: a noop tells the loader that the
// variant already has the study
const scriptInsertStudy = `
if (ctx._source.studies == null) { ctx._source.studies = new ArrayList(); }
boolean found = false;
for (s in ctx._source.studies) { if (s.sid == params.study.sid) { found = true; } }
if (found) { ctx.op = 'none'; } else { ctx._source.studies.add(params.study); }
`

// append a file to an existing study entry, moving its samples out of
// their previous buckets
const scriptMergeFile = `
def entry = null;
for (s in ctx._source.studies) { if (s.sid == params.study.sid) { entry = s; } }
if (entry == null) { ctx._source.studies.add(params.study); return; }
for (f in entry.files) { if (f.fid == params.fileId) { ctx.op = 'none'; return; } }
if (entry.gt == null) { entry.gt = new HashMap(); }
Set moved = new HashSet();
for (ids in params.study.gt.values()) { moved.addAll(ids); }
List empty = new ArrayList();
for (e in entry.gt.entrySet()) {
  List kept = new ArrayList();
  for (id in e.getValue()) { if (!moved.contains(id)) { kept.add(id); } }
  e.setValue(kept);
  if (kept.isEmpty()) { empty.add(e.getKey()); }
}
for (k in empty) { entry.gt.remove(k); }
for (e in params.study.gt.entrySet()) {
  if (!entry.gt.containsKey(e.getKey())) { entry.gt.put(e.getKey(), new ArrayList()); }
  entry.gt.get(e.getKey()).addAll(e.getValue());
}
entry.files.addAll(params.study.files);
`

// add the new samples to the unknown bucket unless they already have a
// genotype
const scriptFillGaps = `
boolean changed = false;
for (s in ctx._source.studies) {
  if (s.sid != params.sid) { continue; }
  if (s.gt == null) { s.gt = new HashMap(); }
  Set present = new HashSet();
  for (ids in s.gt.values()) { present.addAll(ids); }
  List added = new ArrayList();
  for (id in params.samples) { if (!present.contains(id)) { added.add(id); } }
  if (!added.isEmpty()) {
    if (!s.gt.containsKey(params.gt)) { s.gt.put(params.gt, new ArrayList()); }
    s.gt.get(params.gt).addAll(added);
    changed = true;
  }
}
if (!changed) { ctx.op = 'noop'; }
`

const scriptAnnotation = `
ctx._source.annotation = params.annotation;
ctx._source.annotationIndex = params.annotationIndex;
`

const scriptSnapshot = `
if (ctx._source.annotationSnapshots == null) { ctx._source.annotationSnapshots = new HashMap(); }
ctx._source.annotationSnapshots.put(params.name, params.annotation);
`

// replace the (study, cohort) entries, keeping existing ones when
// overwrite is off
const scriptStats = `
if (ctx._source.stats == null) { ctx._source.stats = new ArrayList(); }
boolean changed = false;
for (st in params.stats) {
  List kept = new ArrayList();
  boolean present = false;
  for (old in ctx._source.stats) {
    if (old.sid == st.sid && old.cid == st.cid) { present = true; } else { kept.add(old); }
  }
  if (present && !params.overwrite) { continue; }
  kept.add(st);
  ctx._source.stats = kept;
  changed = true;
}
if (!changed) { ctx.op = 'none'; }
`

const scriptDeleteStats = `
if (ctx._source.stats != null) {
  ctx._source.stats.removeIf(st -> st.sid == params.sid && st.cid == params.cid);
}
`

const scriptCustomAnnotation = `
if (ctx._source.customAnnotations == null) { ctx._source.customAnnotations = new ArrayList(); }
ctx._source.customAnnotations.removeIf(a -> a.name == params.name);
ctx._source.customAnnotations.addAll(params.attrs);
`

const scriptDeleteStudy = `
if (ctx._source.studies != null) { ctx._source.studies.removeIf(s -> s.sid == params.sid); }
if (ctx._source.stats != null) { ctx._source.stats.removeIf(st -> st.sid == params.sid); }
`

var scripts = map[string]string{
	OP_INSERT_STUDY:      scriptInsertStudy,
	OP_MERGE_FILE:        scriptMergeFile,
	OP_FILL_GAPS:         scriptFillGaps,
	OP_ANNOTATION:        scriptAnnotation,
	OP_SNAPSHOT:          scriptSnapshot,
	OP_STATS:             scriptStats,
	OP_DELETE_STATS:      scriptDeleteStats,
	OP_CUSTOM_ANNOTATION: scriptCustomAnnotation,
	OP_DELETE_STUDY:      scriptDeleteStudy,
}

// script builds a script clause. params must not hold "op".
func script(op string, params map[string]interface{}) map[string]interface{} {
	all := map[string]interface{}{"op": op}
	for k, v := range params {
		all[k] = v
	}
	return map[string]interface{}{
		"source": scripts[op],
		"lang":   "painless",
		"params": all,
	}
}
